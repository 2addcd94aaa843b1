package internal

import (
	"fmt"
	"sync"
	"time"
)

// testEpoch is the first instant handed out by SteppingClock
var testEpoch = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

// CreateTestSession creates a session with one user/assistant exchange
func CreateTestSession(id string) *Session {
	return CreateTestSessionWithMessages(id, []Message{
		{
			ID:        id + "-m1",
			Role:      RoleUser,
			Content:   "Hello, how are you?",
			CreatedAt: testEpoch,
		},
		{
			ID:        id + "-m2",
			Role:      RoleAssistant,
			Content:   "I'm doing well, thank you!",
			CreatedAt: testEpoch.Add(time.Second),
		},
	})
}

// CreateTestSessionWithMessages creates a session holding messages
func CreateTestSessionWithMessages(id string, messages []Message) *Session {
	updated := testEpoch
	if len(messages) > 0 {
		updated = messages[len(messages)-1].CreatedAt
	}
	return &Session{
		ID:        id,
		Title:     "Test Conversation",
		Messages:  messages,
		CreatedAt: testEpoch,
		UpdatedAt: updated,
	}
}

// SequentialIDs returns a generator of predictable ids: prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// SteppingClock returns a clock that advances one second per call
func SteppingClock() func() time.Time {
	var mu sync.Mutex
	current := testEpoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(time.Second)
		return now
	}
}
