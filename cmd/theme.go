package cmd

import (
	"fmt"

	"github.com/iksnae/assistant-session/internal"
	"github.com/spf13/cobra"
)

// themeCmd represents the theme command
var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the color theme",
	Long:      `Show the stored color theme used to render markdown, or set it to light, dark, or the opposite of the current one.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			theme := a.store.Theme()
			if theme == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (default)\n", internal.ThemeDark)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		}

		theme, err := applyTheme(a.store, args[0])
		if err != nil {
			return err
		}
		if err := a.store.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), theme)
		return nil
	},
}

// applyTheme sets or toggles the theme from a user argument
func applyTheme(store *internal.Store, arg string) (internal.Theme, error) {
	if arg == "toggle" {
		return store.ToggleTheme(), nil
	}
	theme, ok := internal.ParseTheme(arg)
	if !ok {
		return "", fmt.Errorf("unknown theme %q (expected light, dark or toggle)", arg)
	}
	store.SetTheme(theme)
	return theme, nil
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
