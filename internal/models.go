package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RawSession is a session record as found in storage. It tolerates the
// field names used by older releases of the web client.
type RawSession struct {
	ID        string       `json:"id"`
	Title     string       `json:"title,omitempty"`
	Renamed   bool         `json:"renamed,omitempty"`
	Messages  []RawMessage `json:"messages"`
	CreatedAt Timestamp    `json:"createdAt,omitempty"`
	Created   Timestamp    `json:"created,omitempty"`
	UpdatedAt Timestamp    `json:"updatedAt,omitempty"`
}

// RawMessage is a message record as found in storage
type RawMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   *string   `json:"content,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt Timestamp `json:"createdAt,omitempty"`
	TS        Timestamp `json:"ts,omitempty"`
}

// Timestamp accepts either an RFC3339 string or epoch milliseconds
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

// MessageContent returns the message body, preferring content over the legacy text field
func (rm *RawMessage) MessageContent() string {
	if rm.Content != nil {
		return *rm.Content
	}
	return rm.Text
}

// GetCreatedAt returns the first non-zero creation timestamp
func (rm *RawMessage) GetCreatedAt() time.Time {
	if !rm.CreatedAt.IsZero() {
		return rm.CreatedAt.Time
	}
	return rm.TS.Time
}

// GetCreatedAt returns the first non-zero creation timestamp
func (rs *RawSession) GetCreatedAt() time.Time {
	if !rs.CreatedAt.IsZero() {
		return rs.CreatedAt.Time
	}
	return rs.Created.Time
}

// GetUpdatedAt returns the update timestamp, falling back to creation time
func (rs *RawSession) GetUpdatedAt() time.Time {
	if rs.UpdatedAt.IsZero() {
		return rs.GetCreatedAt()
	}
	return rs.UpdatedAt.Time
}

// sessionSnapshot is the versioned envelope written under SessionsKey
type sessionSnapshot struct {
	Version  int          `json:"version"`
	Sessions []RawSession `json:"sessions"`
}

// ParseRawSessions parses either a versioned envelope or a bare session array
func ParseRawSessions(key string, value []byte) ([]RawSession, int, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return nil, 0, &ParseError{Source: "sessions", Key: key, Err: fmt.Errorf("empty value")}
	}

	if trimmed[0] == '[' {
		var sessions []RawSession
		if err := json.Unmarshal(trimmed, &sessions); err != nil {
			return nil, 0, &ParseError{Source: "sessions", Key: key, Err: err}
		}
		return sessions, 0, nil
	}

	var snapshot sessionSnapshot
	if err := json.Unmarshal(trimmed, &snapshot); err != nil {
		return nil, 0, &ParseError{Source: "sessions", Key: key, Err: err}
	}
	if snapshot.Version > SchemaVersion {
		return nil, snapshot.Version, &ParseError{
			Source: "sessions",
			Key:    key,
			Err:    fmt.Errorf("unsupported schema version %d (max %d)", snapshot.Version, SchemaVersion),
		}
	}
	return snapshot.Sessions, snapshot.Version, nil
}

// ParseRawMessages parses a bare message array (legacy single-history format)
func ParseRawMessages(key string, value []byte) ([]RawMessage, error) {
	var messages []RawMessage
	if err := json.Unmarshal(value, &messages); err != nil {
		return nil, &ParseError{Source: "history", Key: key, Err: err}
	}
	return messages, nil
}

// EncodeSessions serializes sessions into the versioned envelope
func EncodeSessions(sessions []*Session) ([]byte, error) {
	envelope := struct {
		Version  int        `json:"version"`
		Sessions []*Session `json:"sessions"`
	}{
		Version:  SchemaVersion,
		Sessions: sessions,
	}
	if envelope.Sessions == nil {
		envelope.Sessions = []*Session{}
	}
	return json.Marshal(envelope)
}
