package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

// SessionStore is the in-process registry of live chat sessions, keyed by
// session id with a secondary scan by client IP. All map mutations happen
// under one mutex; sessions handed out are snapshots (see domain.Session).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	now      func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithClock overrides the store's time source. Used by tests to control
// expiry.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.now = now
	}
}

func NewSessionStore(opts ...Option) *SessionStore {
	s := &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts the session, evicting any prior sessions for the same
// client IP first: at most one live session per identity.
func (s *SessionStore) Create(session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.sessions {
		if existing.ClientIP == session.ClientIP {
			delete(s.sessions, id)
		}
	}

	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}

	s.sessions[session.ID] = session
	return nil
}

// Lookup returns a snapshot of the session. Absent sessions, sessions owned
// by a different identity, and expired sessions all fail typed; an expired
// session is evicted as a side effect of being observed.
func (s *SessionStore) Lookup(id domain.SessionID, ip domain.ClientIP) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewError(domain.KindSessionNotFound, "chat session not found")
	}
	if sess.ClientIP != ip {
		return nil, domain.NewError(domain.KindIdentityMismatch, "ip address mismatch")
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, id)
		return nil, domain.NewError(domain.KindSessionExpired, "session expired")
	}

	return sess.Snapshot(), nil
}

// Touch refreshes the session's expiry window. Missing sessions are a no-op.
func (s *SessionStore) Touch(id domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(id)
}

func (s *SessionStore) touchLocked(id domain.SessionID) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	now := s.now()
	sess.LastAccessed = now
	sess.ExpiresAt = now.Add(domain.SessionTTL)
}

// CompleteTurn records the outcome of a successful turn: replaces history,
// adds the turn's tokens, and refreshes expiry, all under one lock.
func (s *SessionStore) CompleteTurn(id domain.SessionID, history []domain.Content, tokens int) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewError(domain.KindSessionNotFound, "chat session not found")
	}

	sess.History = history
	sess.TotalTokens += tokens
	s.touchLocked(id)

	return sess.Snapshot(), nil
}

// Delete removes the session iff the identity matches.
func (s *SessionStore) Delete(id domain.SessionID, ip domain.ClientIP) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.ClientIP != ip {
		return false
	}
	delete(s.sessions, id)
	return true
}

// DeleteAllForClient removes every session owned by the identity and
// returns how many were removed.
func (s *SessionStore) DeleteAllForClient(ip domain.ClientIP) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, sess := range s.sessions {
		if sess.ClientIP == ip {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted
}

// ListByClient returns snapshots of every live (non-expired) session owned
// by the identity.
func (s *SessionStore) ListByClient(ip domain.ClientIP) []*domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.ClientIP == ip && !sess.Expired(now) {
			out = append(out, sess.Snapshot())
		}
	}
	return out
}

// Sweep evicts every expired session and returns how many were evicted.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live entries, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunSweeper sweeps expired sessions on the given interval until the
// context is cancelled.
func (s *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	log := observability.Logger().With("interval", interval.String())
	log.Info("session sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if evicted := s.Sweep(); evicted > 0 {
				log.Info("swept expired sessions", "evicted", evicted)
			}
		}
	}
}
