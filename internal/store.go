package internal

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Storage keys
const (
	SessionsKey       = "ai-assistant-sessions-v1"
	ActiveSessionKey  = "ai-assistant-active-session"
	ThemeKey          = "theme"
	LegacySessionsKey = "chat.sessions.v1"
	LegacyHistoryKey  = "chat.history.v1"

	// SchemaVersion is the envelope version written under SessionsKey
	SchemaVersion = 1
)

// Theme is the persisted light/dark preference
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme converts a stored or user supplied value to a Theme
func ParseTheme(value string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(value))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	}
	return "", false
}

// Store owns the session collection, the active session and their persistence.
// Operations that reference an unknown session id are no-ops.
type Store struct {
	mu sync.Mutex

	kv           KV
	normalizer   *Normalizer
	now          func() time.Time
	newID        func() string
	greeting     string
	persistDelay time.Duration

	sessions []*Session
	activeID string
	theme    Theme

	timer   *time.Timer
	dirty   bool
	closed  bool
	lastErr error
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides session and message id generation
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

// WithPersistDelay coalesces writes: the first mutation arms a timer and the
// timer persists the latest state. Zero means write-through.
func WithPersistDelay(d time.Duration) StoreOption {
	return func(s *Store) { s.persistDelay = d }
}

// WithGreeting seeds the first-run session with an assistant message
func WithGreeting(text string) StoreOption {
	return func(s *Store) { s.greeting = strings.TrimSpace(text) }
}

// NewStore creates a Store persisting into kv. Call Load before use.
func NewStore(kv KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:    kv,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.normalizer = &Normalizer{now: s.now, newID: s.newID}
	return s
}

// Load restores persisted state. Missing or unreadable data is treated as a
// first run: a single empty session is synthesized and made active.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, migrated := s.readSessionsLocked()
	if len(sessions) == 0 {
		sessions = []*Session{s.bootstrapSessionLocked()}
		migrated = true
	}
	s.sessions = sessions
	s.activeID = sessions[0].ID

	if id, ok := s.readStringLocked(ActiveSessionKey); ok && s.indexLocked(id) >= 0 {
		s.activeID = id
	}
	if value, ok := s.readStringLocked(ThemeKey); ok {
		if theme, ok := ParseTheme(value); ok {
			s.theme = theme
		}
	}

	LogDebug("Loaded %d session(s), active %s", len(s.sessions), s.activeID)
	if migrated {
		s.persistLocked()
	}
}

// readSessionsLocked reads the current format, then the legacy formats
func (s *Store) readSessionsLocked() ([]*Session, bool) {
	if data, ok := s.getLocked(SessionsKey); ok {
		raw, _, err := ParseRawSessions(SessionsKey, data)
		if err != nil {
			LogWarn("Ignoring stored sessions: %v", err)
		} else if sessions := s.normalizer.NormalizeAllSessions(raw); len(sessions) > 0 {
			return sessions, false
		}
	}

	if data, ok := s.getLocked(LegacySessionsKey); ok {
		raw, _, err := ParseRawSessions(LegacySessionsKey, data)
		if err != nil {
			LogDebug("Ignoring legacy sessions: %v", err)
		} else if sessions := s.normalizer.NormalizeAllSessions(raw); len(sessions) > 0 {
			LogInfo("Migrated %d session(s) from %s", len(sessions), LegacySessionsKey)
			return sessions, true
		}
	}

	if data, ok := s.getLocked(LegacyHistoryKey); ok {
		messages, err := ParseRawMessages(LegacyHistoryKey, data)
		if err != nil {
			LogDebug("Ignoring legacy history: %v", err)
		} else if len(messages) > 0 {
			LogInfo("Migrated %d message(s) from %s", len(messages), LegacyHistoryKey)
			return []*Session{s.normalizer.NormalizeMessages(messages)}, true
		}
	}

	return nil, false
}

func (s *Store) getLocked(key string) ([]byte, bool) {
	data, ok, err := s.kv.Get(key)
	if err != nil {
		LogDebug("Failed to read %s: %v", key, err)
		return nil, false
	}
	return data, ok
}

func (s *Store) readStringLocked(key string) (string, bool) {
	data, ok := s.getLocked(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (s *Store) newSessionLocked() *Session {
	now := s.now()
	return &Session{
		ID:        s.newID(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) bootstrapSessionLocked() *Session {
	session := s.newSessionLocked()
	if s.greeting != "" {
		session.Messages = append(session.Messages, Message{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   s.greeting,
			CreatedAt: session.CreatedAt,
		})
	}
	return session
}

// ensureLocked keeps the collection non-empty and the active id valid
func (s *Store) ensureLocked() {
	if len(s.sessions) == 0 {
		session := s.newSessionLocked()
		s.sessions = []*Session{session}
		s.activeID = session.ID
		return
	}
	if s.indexLocked(s.activeID) < 0 {
		s.activeID = s.sessions[0].ID
	}
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, session := range s.sessions {
		if session.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findLocked(id string) *Session {
	if i := s.indexLocked(id); i >= 0 {
		return s.sessions[i]
	}
	return nil
}

// CreateSession inserts a new empty session at the front and makes it active
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()

	session := s.newSessionLocked()
	s.sessions = append([]*Session{session}, s.sessions...)
	s.activeID = session.ID
	s.persistLocked()

	LogDebug("Created session %s", session.ID)
	return session.ID
}

// DeleteSession removes a session. Deleting the active session activates the
// first remaining one, or a fresh empty session when none remain.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()

	i := s.indexLocked(id)
	if i < 0 {
		return
	}
	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)

	if len(s.sessions) == 0 {
		session := s.newSessionLocked()
		s.sessions = []*Session{session}
		s.activeID = session.ID
	} else if s.activeID == id {
		s.activeID = s.sessions[0].ID
	}
	s.persistLocked()

	LogDebug("Deleted session %s, active %s", id, s.activeID)
}

// SetActive selects the active session
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()

	if s.indexLocked(id) < 0 {
		return
	}
	s.activeID = id
	s.persistLocked()
}

// AppendMessage appends msg to a session, filling in a missing id, role and
// timestamp. The first user message of a session that still carries the
// default title names the session.
func (s *Store) AppendMessage(sessionID string, msg Message) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(sessionID)
	if session == nil {
		return Message{}, false
	}

	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.Role == "" {
		msg.Role = RoleUser
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	firstUser := msg.Role == RoleUser && !session.HasUserMessage()
	session.Messages = append(session.Messages, msg)
	if firstUser && !session.Renamed && session.Title == DefaultTitle {
		if title := DeriveTitle(msg.Content); title != "" {
			session.Title = title
		}
	}
	session.UpdatedAt = msg.CreatedAt
	s.persistLocked()

	return msg, true
}

// UpdateMessage replaces the content of the trailing assistant message
func (s *Store) UpdateMessage(sessionID, messageID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(sessionID)
	if session == nil || len(session.Messages) == 0 {
		return false
	}
	last := &session.Messages[len(session.Messages)-1]
	if last.ID != messageID || last.Role != RoleAssistant {
		return false
	}

	last.Content = content
	session.UpdatedAt = s.now()
	s.persistLocked()
	return true
}

// RenameSession sets an explicit title; blank titles are ignored
func (s *Store) RenameSession(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(id)
	title = strings.TrimSpace(title)
	if session == nil || title == "" {
		return
	}
	session.Title = title
	session.Renamed = true
	session.UpdatedAt = s.now()
	s.persistLocked()
}

// ApplyGeneratedTitle sets a title produced by a title generator unless the
// session was renamed explicitly
func (s *Store) ApplyGeneratedTitle(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(id)
	if session == nil || session.Renamed {
		return false
	}
	title = ClampTitle(title, GeneratedTitleMaxLength)
	if title == "" || title == session.Title {
		return false
	}
	session.Title = title
	s.persistLocked()
	return true
}

// Import merges sessions that are not already present (by id or content)
// after the existing ones and returns how many were added
func (s *Store) Import(sessions []*Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()

	dedup := NewDeduplicator()
	dedup.Remember(s.sessions)
	added := dedup.Deduplicate(sessions)
	if len(added) == 0 {
		return 0
	}

	for _, session := range added {
		c := session.Clone()
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		s.sessions = append(s.sessions, &c)
	}
	s.persistLocked()

	LogInfo("Imported %d session(s)", len(added))
	return len(added)
}

// Sessions returns a copy of every session in display order
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()

	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	return out
}

// Session returns a copy of the session with the given id
func (s *Store) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.findLocked(id)
	if session == nil {
		return Session{}, false
	}
	return session.Clone(), true
}

// ActiveID returns the id of the active session
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	return s.activeID
}

// Active returns a copy of the active session
func (s *Store) Active() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	return s.findLocked(s.activeID).Clone()
}

// Resolve maps an exact session id or a unique id prefix to a session id
func (s *Store) Resolve(ref string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if s.indexLocked(ref) >= 0 {
		return ref, true
	}

	match := ""
	for _, session := range s.sessions {
		if strings.HasPrefix(session.ID, ref) {
			if match != "" {
				return "", false
			}
			match = session.ID
		}
	}
	return match, match != ""
}

// Search returns sessions whose title or messages contain query (case-insensitive)
func (s *Store) Search(query string) []Session {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.Sessions()
	if query == "" {
		return all
	}

	var out []Session
	for _, session := range all {
		if strings.Contains(strings.ToLower(session.Title), query) {
			out = append(out, session)
			continue
		}
		for _, m := range session.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				out = append(out, session)
				break
			}
		}
	}
	return out
}

// Theme returns the persisted theme preference, or "" when none was chosen
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme stores the theme preference
func (s *Store) SetTheme(theme Theme) {
	if _, ok := ParseTheme(string(theme)); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.theme = theme
	if err := s.kv.Set(ThemeKey, []byte(theme)); err != nil {
		LogDebug("Failed to persist theme: %v", err)
	}
}

// ToggleTheme flips between dark and light and returns the new theme; an
// unset theme counts as dark
func (s *Store) ToggleTheme() Theme {
	next := ThemeDark
	if current := s.Theme(); current == ThemeDark || current == "" {
		next = ThemeLight
	}
	s.SetTheme(next)
	return next
}

// persistLocked writes immediately or arms the coalescing timer
func (s *Store) persistLocked() {
	s.dirty = true
	if s.persistDelay <= 0 || s.closed {
		_ = s.writeLocked()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.persistDelay, s.flushTimer)
	}
}

func (s *Store) flushTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	_ = s.writeLocked()
}

// writeLocked serializes the collection. Failures are logged and kept for
// LastError; the in-memory state stays authoritative.
func (s *Store) writeLocked() error {
	if !s.dirty {
		return nil
	}

	data, err := EncodeSessions(s.sessions)
	if err != nil {
		s.lastErr = err
		LogWarn("Failed to encode sessions: %v", err)
		return err
	}
	if err := s.kv.Set(SessionsKey, data); err != nil {
		s.lastErr = err
		LogDebug("Failed to persist sessions: %v", err)
		return err
	}
	if err := s.kv.Set(ActiveSessionKey, []byte(s.activeID)); err != nil {
		s.lastErr = err
		LogDebug("Failed to persist active session: %v", err)
		return err
	}

	s.dirty = false
	s.lastErr = nil
	return nil
}

// Flush writes any pending state now
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.writeLocked()
}

// Close flushes pending state; later mutations are written through
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush()
}

// LastError returns the most recent persistence failure, if any
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
