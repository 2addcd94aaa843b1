package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/assistant-session/internal"
)

// JSONExporter exports sessions in JSON format (pretty-printed)
type JSONExporter struct{}

// Export exports a session to JSON format
func (e *JSONExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(session)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}

// ExportBundle writes sessions as one versioned envelope that the import
// command reads back
func ExportBundle(sessions []*internal.Session, w io.Writer) error {
	data, err := internal.EncodeSessions(sessions)
	if err != nil {
		return &internal.ExportError{Format: "bundle", Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &internal.ExportError{Format: "bundle", Err: err}
	}
	return nil
}
