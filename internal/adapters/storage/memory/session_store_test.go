package memory_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	memory "github.com/PabloGalante/docchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/docchat/internal/domain"
)

func newSession(id, ip string, now time.Time) *domain.Session {
	return &domain.Session{
		ID:           domain.SessionID(id),
		ClientIP:     domain.ClientIP(ip),
		Model:        "gemini-2.0-flash-001",
		History:      []domain.Content{},
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(domain.SessionTTL),
	}
}

func TestCreateEvictsSameClient(t *testing.T) {
	store := memory.NewSessionStore()
	now := time.Now()

	if err := store.Create(newSession("s1", "10.0.0.1", now)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(newSession("s2", "10.0.0.1", now)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Lookup("s1", "10.0.0.1"); !domain.IsKind(err, domain.KindSessionNotFound) {
		t.Fatalf("expected first session evicted, got err=%v", err)
	}
	if _, err := store.Lookup("s2", "10.0.0.1"); err != nil {
		t.Fatalf("expected second session live, got err=%v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestCreateKeepsOtherClients(t *testing.T) {
	store := memory.NewSessionStore()
	now := time.Now()

	_ = store.Create(newSession("s1", "10.0.0.1", now))
	_ = store.Create(newSession("s2", "10.0.0.2", now))

	if store.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", store.Len())
	}
}

func TestLookupIdentityIsolation(t *testing.T) {
	store := memory.NewSessionStore()
	_ = store.Create(newSession("s1", "10.0.0.1", time.Now()))

	_, err := store.Lookup("s1", "10.0.0.99")
	if !domain.IsKind(err, domain.KindIdentityMismatch) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}

	// The session itself must survive a foreign lookup.
	if _, err := store.Lookup("s1", "10.0.0.1"); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
}

func TestLookupExpiredEvicts(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))

	_ = store.Create(newSession("s1", "10.0.0.1", now))

	now = now.Add(domain.SessionTTL + time.Minute)

	_, err := store.Lookup("s1", "10.0.0.1")
	if !domain.IsKind(err, domain.KindSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}

	// Observing expiry evicts; the second lookup is a plain miss.
	_, err = store.Lookup("s1", "10.0.0.1")
	if !domain.IsKind(err, domain.KindSessionNotFound) {
		t.Fatalf("expected not found after eviction, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestTouchExtendsExpiry(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))

	_ = store.Create(newSession("s1", "10.0.0.1", now))
	before, _ := store.Lookup("s1", "10.0.0.1")

	now = now.Add(time.Hour)
	store.Touch("s1")

	after, err := store.Lookup("s1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !after.ExpiresAt.Equal(now.Add(domain.SessionTTL)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(domain.SessionTTL), after.ExpiresAt)
	}
	if after.ExpiresAt.Before(before.ExpiresAt) {
		t.Fatalf("touch decreased expiry: %v -> %v", before.ExpiresAt, after.ExpiresAt)
	}
	if !after.LastAccessed.Equal(now) {
		t.Fatalf("expected last accessed %v, got %v", now, after.LastAccessed)
	}
}

func TestTouchMissingSessionIsNoop(t *testing.T) {
	store := memory.NewSessionStore()
	store.Touch("missing")
}

func TestCompleteTurnAccumulatesTokens(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))

	_ = store.Create(newSession("s1", "10.0.0.1", now))

	history := []domain.Content{
		{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart("hello")}},
		{Role: domain.RoleModel, Parts: []domain.Part{domain.TextPart("hi")}},
	}

	updated, err := store.CompleteTurn("s1", history, 42)
	if err != nil {
		t.Fatalf("CompleteTurn failed: %v", err)
	}
	if updated.TotalTokens != 42 {
		t.Fatalf("expected 42 tokens, got %d", updated.TotalTokens)
	}
	if len(updated.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(updated.History))
	}

	updated, err = store.CompleteTurn("s1", history, 8)
	if err != nil {
		t.Fatalf("CompleteTurn failed: %v", err)
	}
	if updated.TotalTokens != 50 {
		t.Fatalf("expected 50 tokens, got %d", updated.TotalTokens)
	}

	if _, err := store.CompleteTurn("missing", history, 1); !domain.IsKind(err, domain.KindSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRequiresMatchingIdentity(t *testing.T) {
	store := memory.NewSessionStore()
	_ = store.Create(newSession("s1", "10.0.0.1", time.Now()))

	if store.Delete("s1", "10.0.0.99") {
		t.Fatal("delete succeeded for wrong identity")
	}
	if !store.Delete("s1", "10.0.0.1") {
		t.Fatal("delete failed for owner")
	}
	if store.Delete("s1", "10.0.0.1") {
		t.Fatal("delete succeeded twice")
	}
}

func TestDeleteAllForClient(t *testing.T) {
	store := memory.NewSessionStore()
	now := time.Now()

	_ = store.Create(newSession("s1", "10.0.0.1", now))
	_ = store.Create(newSession("s2", "10.0.0.2", now))

	if n := store.DeleteAllForClient("10.0.0.1"); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if n := store.DeleteAllForClient("10.0.0.1"); n != 0 {
		t.Fatalf("expected 0 deleted, got %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", store.Len())
	}
}

func TestListByClientSkipsExpired(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))

	_ = store.Create(newSession("s1", "10.0.0.1", now))
	_ = store.Create(newSession("s2", "10.0.0.2", now))

	if got := store.ListByClient("10.0.0.1"); len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}

	now = now.Add(domain.SessionTTL + time.Minute)

	if got := store.ListByClient("10.0.0.1"); len(got) != 0 {
		t.Fatalf("expected no live sessions, got %d", len(got))
	}
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	now := time.Now()
	store := memory.NewSessionStore(memory.WithClock(func() time.Time { return now }))

	old := newSession("old", "10.0.0.1", now)
	_ = store.Create(old)

	now = now.Add(domain.SessionTTL + time.Minute)
	fresh := newSession("fresh", "10.0.0.2", now)
	_ = store.Create(fresh)

	if evicted := store.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 evicted, got %d", evicted)
	}
	if _, err := store.Lookup("fresh", "10.0.0.2"); err != nil {
		t.Fatalf("fresh session evicted: %v", err)
	}
	if evicted := store.Sweep(); evicted != 0 {
		t.Fatalf("expected 0 evicted, got %d", evicted)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := memory.NewSessionStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.0.%d", i%4)
			id := fmt.Sprintf("s-%d", i)
			_ = store.Create(newSession(id, ip, now))
			_, _ = store.Lookup(domain.SessionID(id), domain.ClientIP(ip))
			store.Touch(domain.SessionID(id))
			store.Sweep()
			store.ListByClient(domain.ClientIP(ip))
		}(i)
	}
	wg.Wait()

	// One live session per identity must hold after any interleaving.
	for i := 0; i < 4; i++ {
		ip := domain.ClientIP(fmt.Sprintf("10.0.0.%d", i))
		if got := store.ListByClient(ip); len(got) > 1 {
			t.Fatalf("identity %s has %d live sessions", ip, len(got))
		}
	}
}
