package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PabloGalante/docchat/internal/domain"
)

// MockClient is an in-process stand-in for the Gemini service, useful for
// local development and tests. Replies echo the prompt; token counts are a
// rough character estimate.
type MockClient struct {
	// Reply, if set, overrides the default echo reply.
	Reply func(parts []domain.Part) (string, error)

	// TurnDelay makes each turn take this long, honoring the caller's
	// deadline the way the real adapter does.
	TurnDelay time.Duration
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Open(ctx context.Context, model, location, preprompt string) (domain.ConversationHandle, error) {
	return &mockHandle{client: m, model: model}, nil
}

func (m *MockClient) Generate(ctx context.Context, model, location, preprompt string, parts []domain.Part) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	return m.reply(parts)
}

// wait simulates upstream latency. A deadline that expires mid-turn is
// surfaced as a timeout, matching the live adapter's classification.
func (m *MockClient) wait(ctx context.Context) error {
	if m.TurnDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(m.TurnDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return domain.WrapError(ctx.Err(), domain.KindUpstreamTimeout, "send message timed out")
	}
}

func (m *MockClient) reply(parts []domain.Part) (string, error) {
	if m.Reply != nil {
		return m.Reply(parts)
	}
	for _, p := range parts {
		if p.Kind == domain.PartText && p.Text != "" {
			return fmt.Sprintf("You said: %q", p.Text), nil
		}
	}
	return "I received your document.", nil
}

type mockHandle struct {
	client *MockClient
	model  string

	mu      sync.Mutex
	history []domain.Content
}

func (h *mockHandle) SendTurn(ctx context.Context, parts []domain.Part) (string, []domain.Content, error) {
	if err := h.client.wait(ctx); err != nil {
		return "", nil, err
	}

	reply, err := h.client.reply(parts)
	if err != nil {
		return "", nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history,
		domain.Content{Role: domain.RoleUser, Parts: parts},
		domain.Content{Role: domain.RoleModel, Parts: []domain.Part{domain.TextPart(reply)}},
	)

	out := make([]domain.Content, len(h.history))
	copy(out, h.history)
	return reply, out, nil
}

func (h *mockHandle) CountTokens(ctx context.Context, parts []domain.Part) (int, error) {
	tokens := 0
	for _, p := range parts {
		switch p.Kind {
		case domain.PartText:
			tokens += len(p.Text)/4 + 1
		case domain.PartBlob:
			tokens += len(p.Data) / 16
		}
	}
	return tokens, nil
}
