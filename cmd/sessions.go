package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/assistant-session/internal"
	"github.com/spf13/cobra"
)

var (
	newTitle string
)

// newCmd represents the new command
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := a.store.CreateSession()
		if newTitle != "" {
			a.store.RenameSession(id, newTitle)
		}
		if err := a.store.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

// useCmd represents the use command
var useCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Make a session the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveSession(args[0])
		if err != nil {
			return err
		}
		a.store.SetActive(id)
		if err := a.store.Flush(); err != nil {
			return err
		}
		s := a.store.Active()
		internal.PrintSuccess(fmt.Sprintf("Active session: %s (%s)", s.Title, shortID(s.ID)))
		return nil
	},
}

// renameCmd represents the rename command
var renameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>...",
	Short: "Rename a session",
	Long: `Rename a session. A renamed session keeps its title when a generated title
arrives later.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveSession(args[0])
		if err != nil {
			return err
		}
		a.store.RenameSession(id, strings.Join(args[1:], " "))
		if err := a.store.Flush(); err != nil {
			return err
		}
		s, _ := a.store.Session(id)
		internal.PrintSuccess(fmt.Sprintf("Renamed %s to %q", shortID(id), s.Title))
		return nil
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete sessions",
	Long: `Delete one or more sessions. Deleting the active session activates the first
remaining one; deleting the last session leaves a fresh empty one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ids := make([]string, 0, len(args))
		for _, ref := range args {
			id, err := a.resolveSession(ref)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			s, _ := a.store.Session(id)
			a.store.DeleteSession(id)
			fmt.Fprintf(cmd.OutOrStdout(), "🗑  Deleted %s (%s)\n", s.Title, shortID(id))
		}
		return a.store.Flush()
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)

	newCmd.Flags().StringVarP(&newTitle, "title", "t", "", "Title for the new session")
}
