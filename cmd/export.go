package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/assistant-session/internal"
	"github.com/iksnae/assistant-session/internal/export"
	"github.com/spf13/cobra"
)

// bundleFilename is the file written by export --bundle
const bundleFilename = "sessions.json"

var (
	format       string
	outputDir    string
	exportSearch string
	sessionID    string
	bundle       bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions to file",
	Long: `Export chat sessions to various formats (jsonl, md, yaml, json).

You can export all sessions, filter them with --search, or export a specific
session by ID. Use 'assistant-session list' to see available session IDs.

With --bundle every selected session is written to a single sessions.json in the
storage envelope format, which 'assistant-session import' reads back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := selectSessions(a)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			internal.PrintWarning("No sessions to export")
			return nil
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		if bundle {
			path := filepath.Join(outputDir, bundleFilename)
			if err := writeFile(path, func(f *os.File) error { return export.ExportBundle(sessions, f) }); err != nil {
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Export complete: %d session(s) bundled into %s", len(sessions), path))
			return nil
		}

		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		exported := 0
		ctx := context.Background()
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d session(s) to %s", len(sessions), outputDir), func() error {
			for _, session := range sessions {
				path := filepath.Join(outputDir, export.Filename(session, exporter))
				if err := writeFile(path, func(f *os.File) error { return exporter.Export(session, f) }); err != nil {
					internal.LogError("Failed to export session %s: %v", session.ID, err)
					continue
				}
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if exported < len(sessions) {
			return fmt.Errorf("exported %d of %d session(s)", exported, len(sessions))
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d session(s) exported to %s", exported, outputDir))
		return nil
	},
}

// selectSessions applies the --session and --search filters
func selectSessions(a *app) ([]*internal.Session, error) {
	var selected []internal.Session
	switch {
	case sessionID != "":
		id, err := a.resolveSession(sessionID)
		if err != nil {
			return nil, err
		}
		s, _ := a.store.Session(id)
		selected = []internal.Session{s}
	case exportSearch != "":
		selected = a.store.Search(exportSearch)
	default:
		selected = a.store.Sessions()
	}

	sessions := make([]*internal.Session, 0, len(selected))
	for i := range selected {
		sessions = append(sessions, &selected[i])
	}
	return sessions, nil
}

// writeFile creates path and hands it to write, wrapping failures in an
// ExportError
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "Only export sessions matching this text")
	exportCmd.Flags().StringVar(&sessionID, "session", "", "Export a specific session by ID or prefix")
	exportCmd.Flags().BoolVar(&bundle, "bundle", false, "Write all selected sessions into one importable sessions.json")
}
