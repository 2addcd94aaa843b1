package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Deduplicator removes sessions whose conversation is already known
type Deduplicator struct {
	seen map[string]bool
}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]bool)}
}

// Remember marks the given sessions as already present
func (d *Deduplicator) Remember(sessions []*Session) {
	for _, session := range sessions {
		d.seen["id:"+session.ID] = true
		if hash := d.hashSessionContent(session); hash != "" {
			d.seen[hash] = true
		}
	}
}

// Deduplicate removes duplicate sessions based on id and content hash
func (d *Deduplicator) Deduplicate(sessions []*Session) []*Session {
	var unique []*Session

	for _, session := range sessions {
		idKey := "id:" + session.ID
		hash := d.hashSessionContent(session)
		if d.seen[idKey] || (hash != "" && d.seen[hash]) {
			continue
		}
		d.seen[idKey] = true
		if hash != "" {
			d.seen[hash] = true
		}
		unique = append(unique, session)
	}

	return unique
}

// hashSessionContent creates a content-based hash for a session; empty
// sessions have no content identity
func (d *Deduplicator) hashSessionContent(session *Session) string {
	if len(session.Messages) == 0 {
		return ""
	}
	h := sha256.New()

	// Hash all message content
	for _, msg := range session.Messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
