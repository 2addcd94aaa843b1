package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/assistant-session/internal"
	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import sessions from exported files",
	Long: `Import sessions from a bundle written by 'export --bundle', a JSON array of
sessions or a JSON message history. Sessions that already exist, by id or by
identical content, are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		normalizer := internal.NewNormalizer()
		var sessions []*internal.Session
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			decoded, err := normalizer.DecodeSessions(path, data)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", path, err)
			}
			internal.LogInfo("Read %d session(s) from %s", len(decoded), path)
			sessions = append(sessions, decoded...)
		}

		added := a.store.Import(sessions)
		if err := a.store.Flush(); err != nil {
			return fmt.Errorf("failed to save imported sessions: %w", err)
		}

		skipped := len(sessions) - added
		if skipped > 0 {
			internal.PrintSuccess(fmt.Sprintf("Imported %d session(s), skipped %d already present", added, skipped))
		} else {
			internal.PrintSuccess(fmt.Sprintf("Imported %d session(s)", added))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
