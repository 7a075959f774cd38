package domain

import "context"

// ConversationClient is how the core talks to the remote model service.
type ConversationClient interface {
	// Open establishes a stateful conversation for the given model.
	Open(ctx context.Context, model, location, preprompt string) (ConversationHandle, error)

	// Generate runs a one-shot, sessionless generation in the model's
	// serving location.
	Generate(ctx context.Context, model, location, preprompt string, parts []Part) (string, error)
}

// ConversationHandle is the opaque remote-side resource representing one
// open multi-turn dialogue.
type ConversationHandle interface {
	// SendTurn appends a user turn and returns the model's reply plus the
	// full updated history. Failures are not retried here.
	SendTurn(ctx context.Context, parts []Part) (reply string, history []Content, err error)

	// CountTokens estimates token usage for the given content. Used for
	// accounting only, never for flow control.
	CountTokens(ctx context.Context, parts []Part) (int, error)
}

// SessionStore defines the registry of live sessions.
type SessionStore interface {
	// Create inserts a new session, evicting any existing sessions for the
	// same client identity first.
	Create(session *Session) error

	// Lookup returns a snapshot of the session. It fails typed: not found,
	// identity mismatch, or expired (expired entries are evicted as a side
	// effect of being observed).
	Lookup(id SessionID, ip ClientIP) (*Session, error)

	// Touch refreshes the session's expiry. Missing sessions are a no-op.
	Touch(id SessionID)

	// CompleteTurn atomically replaces the session's history, adds the
	// turn's tokens, and refreshes expiry. Returns the updated snapshot.
	CompleteTurn(id SessionID, history []Content, tokens int) (*Session, error)

	Delete(id SessionID, ip ClientIP) bool
	DeleteAllForClient(ip ClientIP) int
	ListByClient(ip ClientIP) []*Session
	Sweep() int
}
