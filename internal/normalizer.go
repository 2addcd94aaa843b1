package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalizer converts raw stored records to Session format
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NormalizeSession converts a RawSession to a Session
func (n *Normalizer) NormalizeSession(raw *RawSession) (*Session, error) {
	if raw == nil {
		return nil, fmt.Errorf("session is nil")
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = n.newID()
	}

	createdAt := raw.GetCreatedAt()
	if createdAt.IsZero() {
		createdAt = n.now()
	}

	messages := make([]Message, 0, len(raw.Messages))
	for _, rm := range raw.Messages {
		messages = append(messages, n.normalizeMessage(rm, createdAt))
	}

	updatedAt := raw.GetUpdatedAt()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = DefaultTitle
	}

	return &Session{
		ID:        id,
		Title:     title,
		Renamed:   raw.Renamed,
		Messages:  messages,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// NormalizeMessages builds a single session from a bare message history
func (n *Normalizer) NormalizeMessages(raw []RawMessage) *Session {
	now := n.now()
	session := &Session{
		ID:        n.newID(),
		Title:     DefaultTitle,
		Messages:  make([]Message, 0, len(raw)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, rm := range raw {
		session.Messages = append(session.Messages, n.normalizeMessage(rm, now))
	}

	if first := session.FirstUserMessage(); first != "" {
		if title := DeriveTitle(first); title != "" {
			session.Title = title
		}
	}
	if len(session.Messages) > 0 {
		first := session.Messages[0].CreatedAt
		if first.Before(session.CreatedAt) {
			session.CreatedAt = first
		}
		session.UpdatedAt = session.Messages[len(session.Messages)-1].CreatedAt
	}

	return session
}

// normalizeMessage converts a RawMessage to a Message
func (n *Normalizer) normalizeMessage(rm RawMessage, fallback time.Time) Message {
	id := strings.TrimSpace(rm.ID)
	if id == "" {
		id = n.newID()
	}

	createdAt := rm.GetCreatedAt()
	if createdAt.IsZero() {
		createdAt = fallback
	}

	return Message{
		ID:        id,
		Role:      n.normalizeRole(rm.Role),
		Content:   rm.MessageContent(),
		CreatedAt: createdAt,
	}
}

// normalizeRole maps stored role names to a Role
func (n *Normalizer) normalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "bot", "ai":
		return RoleAssistant
	case "system":
		return RoleSystem
	default:
		return RoleUser // Default fallback
	}
}

// NormalizeAllSessions normalizes all raw sessions, dropping repeated ids
func (n *Normalizer) NormalizeAllSessions(raw []RawSession) []*Session {
	sessions := make([]*Session, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for i := range raw {
		session, err := n.NormalizeSession(&raw[i])
		if err != nil {
			LogDebug("Skipping session %d: %v", i, err)
			continue
		}
		if seen[session.ID] {
			LogDebug("Skipping duplicate session id %s", session.ID)
			continue
		}
		seen[session.ID] = true
		sessions = append(sessions, session)
	}

	return sessions
}

// DecodeSessions parses stored or exported data into sessions. It accepts the
// versioned envelope, a bare session array and a bare message history.
func (n *Normalizer) DecodeSessions(source string, data []byte) ([]*Session, error) {
	raw, _, err := ParseRawSessions(source, data)
	if err != nil {
		return nil, err
	}

	withMessages := 0
	for _, rs := range raw {
		if len(rs.Messages) > 0 {
			withMessages++
		}
	}
	if withMessages == 0 && len(raw) > 0 {
		if messages, err := ParseRawMessages(source, data); err == nil && looksLikeHistory(messages) {
			return []*Session{n.NormalizeMessages(messages)}, nil
		}
	}

	return n.NormalizeAllSessions(raw), nil
}

// looksLikeHistory reports whether every record carries a role and a body
func looksLikeHistory(messages []RawMessage) bool {
	for _, m := range messages {
		if strings.TrimSpace(m.Role) == "" || m.MessageContent() == "" {
			return false
		}
	}
	return len(messages) > 0
}
