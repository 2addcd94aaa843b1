package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// Storage keys, duplicated here so fixtures do not import the packages under test
const (
	SessionsKey       = "ai-assistant-sessions-v1"
	ActiveSessionKey  = "ai-assistant-active-session"
	ThemeKey          = "theme"
	LegacySessionsKey = "chat.sessions.v1"
	LegacyHistoryKey  = "chat.history.v1"
)

// SessionsEnvelopeJSON is a versioned collection of two sessions
const SessionsEnvelopeJSON = `{
  "version": 1,
  "sessions": [
    {
      "id": "session-1",
      "title": "Quantum tunneling",
      "messages": [
        {"id": "m1", "role": "user", "content": "Explain quantum tunneling", "createdAt": "2025-01-02T10:00:00Z"},
        {"id": "m2", "role": "assistant", "content": "Particles can cross barriers.", "createdAt": "2025-01-02T10:00:05Z"}
      ],
      "createdAt": "2025-01-02T10:00:00Z",
      "updatedAt": "2025-01-02T10:00:05Z"
    },
    {
      "id": "session-2",
      "title": "Recipes",
      "renamed": true,
      "messages": [
        {"id": "m3", "role": "user", "content": "Suggest a pasta recipe", "createdAt": "2025-01-01T09:00:00Z"}
      ],
      "createdAt": "2025-01-01T09:00:00Z",
      "updatedAt": "2025-01-01T09:00:00Z"
    }
  ]
}`

// LegacySessionsJSON is the bare session array written by the first web client
const LegacySessionsJSON = `[
  {
    "id": "legacy-1",
    "title": "Old chat",
    "created": 1735725600000,
    "messages": [
      {"role": "user", "text": "Hello there"},
      {"role": "bot", "text": "Hi! How can I help?"}
    ]
  }
]`

// LegacyHistoryJSON is the single message list written before sessions existed
const LegacyHistoryJSON = `[
  {"role": "user", "content": "What is the capital of France?", "ts": 1735725600000},
  {"role": "assistant", "content": "Paris.", "ts": 1735725601000}
]`

// CreateSQLiteFixture creates an on-disk SQLite database holding the
// SessionsEnvelopeJSON collection
func CreateSQLiteFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(createKVTable); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	InsertKV(t, db, SessionsKey, SessionsEnvelopeJSON)
	InsertKV(t, db, ActiveSessionKey, "session-1")
}

// CreateExportFixture writes an exported session file and returns its path
func CreateExportFixture(t *testing.T, dir string) string {
	t.Helper()
	return WriteFile(t, dir, "sessions.json", []byte(SessionsEnvelopeJSON))
}
