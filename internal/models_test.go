package internal

import (
	"errors"
	"testing"
	"time"

	"github.com/iksnae/assistant-session/testutil"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2025-01-02T10:00:00Z"`, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), false},
		{"rfc3339 nano", `"2025-01-02T10:00:00.5Z"`, time.Date(2025, 1, 2, 10, 0, 0, 500000000, time.UTC), false},
		{"epoch millis", `1735725600000`, time.UnixMilli(1735725600000), false},
		{"null", `null`, time.Time{}, false},
		{"empty string", `""`, time.Time{}, false},
		{"garbage", `"yesterday"`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := ts.UnmarshalJSON([]byte(tt.json))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !ts.Time.Equal(tt.want) {
				t.Errorf("UnmarshalJSON() = %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestParseRawSessions(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantCount   int
		wantVersion int
		wantErr     bool
	}{
		{"versioned envelope", testutil.SessionsEnvelopeJSON, 2, 1, false},
		{"bare array", testutil.LegacySessionsJSON, 1, 0, false},
		{"empty envelope", `{"version":1,"sessions":[]}`, 0, 1, false},
		{"newer version", `{"version":2,"sessions":[]}`, 0, 2, true},
		{"truncated", `[{"id":"a"`, 0, 0, true},
		{"empty value", ``, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, version, err := ParseRawSessions(SessionsKey, []byte(tt.value))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRawSessions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error %T is not a *ParseError", err)
				}
			}
			if len(sessions) != tt.wantCount {
				t.Errorf("len(sessions) = %d, want %d", len(sessions), tt.wantCount)
			}
			if version != tt.wantVersion {
				t.Errorf("version = %d, want %d", version, tt.wantVersion)
			}
		})
	}
}

func TestRawMessageContent(t *testing.T) {
	empty := ""
	body := "body"
	tests := []struct {
		name string
		msg  RawMessage
		want string
	}{
		{"content", RawMessage{Content: &body, Text: "legacy"}, "body"},
		{"empty content wins over text", RawMessage{Content: &empty, Text: "legacy"}, ""},
		{"legacy text", RawMessage{Text: "legacy"}, "legacy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.MessageContent(); got != tt.want {
				t.Errorf("MessageContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRawMessages(t *testing.T) {
	messages, err := ParseRawMessages(LegacyHistoryKey, []byte(testutil.LegacyHistoryJSON))
	if err != nil {
		t.Fatalf("ParseRawMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if got := messages[1].GetCreatedAt(); !got.Equal(time.UnixMilli(1735725601000)) {
		t.Errorf("GetCreatedAt() = %v", got)
	}

	if _, err := ParseRawMessages(LegacyHistoryKey, []byte(`{"not":"a list"}`)); err == nil {
		t.Error("ParseRawMessages() expected error for an object")
	}
}
