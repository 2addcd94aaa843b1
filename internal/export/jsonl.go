package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/assistant-session/internal"
)

// JSONLExporter exports sessions in JSONL format (one message per line)
type JSONLExporter struct{}

type jsonlLine struct {
	Session   string        `json:"session"`
	ID        string        `json:"id"`
	Role      internal.Role `json:"role"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"createdAt,omitempty"`
}

// Export exports a session to JSONL format
func (e *JSONLExporter) Export(session *internal.Session, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range session.Messages {
		line := jsonlLine{
			Session: session.ID,
			ID:      msg.ID,
			Role:    msg.Role,
			Content: msg.Content,
		}
		if !msg.CreatedAt.IsZero() {
			line.CreatedAt = msg.CreatedAt.UTC().Format(time.RFC3339)
		}

		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
