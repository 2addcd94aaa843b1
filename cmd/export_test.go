package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantFiles []string
		notFiles  []string
	}{
		{
			name:      "jsonl by default",
			args:      []string{"export"},
			wantFiles: []string{"session_session-1.jsonl", "session_session-2.jsonl"},
		},
		{
			name:      "markdown",
			args:      []string{"export", "--format", "md"},
			wantFiles: []string{"session_session-1.md", "session_session-2.md"},
		},
		{
			name:      "yaml for one session",
			args:      []string{"export", "-f", "yaml", "--session", "session-2"},
			wantFiles: []string{"session_session-2.yaml"},
			notFiles:  []string{"session_session-1.yaml"},
		},
		{
			name:      "json filtered by search",
			args:      []string{"export", "-f", "json", "--search", "quantum"},
			wantFiles: []string{"session_session-1.json"},
			notFiles:  []string{"session_session-2.json"},
		},
		{
			name:      "bundle",
			args:      []string{"export", "--bundle"},
			wantFiles: []string{bundleFilename},
		},
		{
			name:    "invalid format",
			args:    []string{"export", "--format", "invalid"},
			wantErr: true,
		},
		{
			name:    "unknown session",
			args:    []string{"export", "--session", "missing"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			outDir := filepath.Join(dir, "exports")
			args := append([]string{"--storage", seededDB(t, dir)}, tt.args...)
			args = append(args, "--out", outDir)

			_, err := run(t, args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, name := range tt.wantFiles {
				data, err := os.ReadFile(filepath.Join(outDir, name))
				if err != nil {
					t.Errorf("expected %s: %v", name, err)
					continue
				}
				if len(data) == 0 {
					t.Errorf("%s is empty", name)
				}
			}
			for _, name := range tt.notFiles {
				if _, err := os.Stat(filepath.Join(outDir, name)); err == nil {
					t.Errorf("%s should not be exported", name)
				}
			}
		})
	}
}

func TestExportMarkdownContent(t *testing.T) {
	dir := isolate(t)
	outDir := filepath.Join(dir, "exports")

	if _, err := run(t, "--storage", seededDB(t, dir), "export", "-f", "md", "--session", "session-1", "-o", outDir); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "session_session-1.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"Quantum tunneling", "Explain quantum tunneling", "Particles can cross barriers."} {
		if !strings.Contains(string(data), want) {
			t.Errorf("markdown missing %q:\n%s", want, data)
		}
	}
}

func TestExportBundleRoundTrip(t *testing.T) {
	dir := isolate(t)
	outDir := filepath.Join(dir, "exports")

	if _, err := run(t, "--storage", seededDB(t, dir), "export", "--bundle", "-o", outDir); err != nil {
		t.Fatalf("export error = %v", err)
	}

	freshDB := filepath.Join(dir, "fresh", "sessions.db")
	if _, err := run(t, "--storage", freshDB, "import", filepath.Join(outDir, bundleFilename)); err != nil {
		t.Fatalf("import error = %v", err)
	}

	store := openStore(t, freshDB)
	for _, id := range []string{"session-1", "session-2"} {
		s, ok := store.Session(id)
		if !ok {
			t.Errorf("session %s missing after round trip", id)
			continue
		}
		if len(s.Messages) == 0 {
			t.Errorf("session %s lost its messages", id)
		}
	}
	if s, _ := store.Session("session-2"); !s.Renamed || s.Title != "Recipes" {
		t.Errorf("renamed title should survive the round trip, got %+v", s)
	}
}
