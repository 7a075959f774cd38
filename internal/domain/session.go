package domain

import "sync"

// Session is a client-scoped handle to an open remote conversation, plus the
// local expiry metadata that governs its lifetime.
type Session struct {
	ID       SessionID
	ClientIP ClientIP
	Model    string

	// Handle is the remote conversation this session owns. It is never
	// shared across sessions and is dropped when the session is evicted.
	Handle ConversationHandle

	// TurnMu serializes in-flight turns on this session. Snapshots share
	// the pointer, so the lock is dropped together with the entry.
	TurnMu *sync.Mutex

	// History is the redacted transcript (binary parts already replaced
	// by placeholders). The raw bytes live only inside the handle.
	History []Content

	CreatedAt    Timestamp
	LastAccessed Timestamp
	ExpiresAt    Timestamp

	TotalTokens int
}

// Expired reports whether the session's TTL has passed at the given time.
func (s *Session) Expired(now Timestamp) bool {
	return s.ExpiresAt.Before(now)
}

// Snapshot returns a copy safe to hand outside the store. The history slice
// is copied so later turns can't mutate it under the caller; the handle
// still points at the same remote conversation.
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.History = make([]Content, len(s.History))
	copy(cp.History, s.History)
	return &cp
}
