package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/assistant-session/internal"
	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
	}{
		{
			name:    "basic session",
			session: internal.CreateTestSession("test1"),
		},
		{
			name:    "empty session",
			session: internal.CreateTestSessionWithMessages("test2", []internal.Message{}),
		},
		{
			name: "renamed session",
			session: &internal.Session{
				ID:       "test3",
				Title:    "Renamed",
				Renamed:  true,
				Messages: []internal.Message{{ID: "m1", Role: internal.RoleUser, Content: "Hello"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &YAMLExporter{}

			if err := exporter.Export(tt.session, &buf); err != nil {
				t.Fatalf("YAMLExporter.Export() error = %v", err)
			}

			output := buf.String()
			var session internal.Session
			if err := yaml.Unmarshal([]byte(output), &session); err != nil {
				t.Fatalf("Output is not valid YAML: %v\nOutput: %s", err, output)
			}
			if session.ID != tt.session.ID || session.Title != tt.session.Title || session.Renamed != tt.session.Renamed {
				t.Errorf("decoded session = %+v", session)
			}
			if len(session.Messages) != len(tt.session.Messages) {
				t.Errorf("decoded %d messages, want %d", len(session.Messages), len(tt.session.Messages))
			}
			if !strings.Contains(output, "created_at:") {
				t.Errorf("Output should use snake_case keys:\n%s", output)
			}
		})
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
