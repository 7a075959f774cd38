package chat

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/docchat/internal/config"
	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

// Service validates and executes conversational turns against the remote
// model service, keeping the session store in sync.
type Service struct {
	client domain.ConversationClient
	store  domain.SessionStore
	now    func() time.Time

	defaultModel     string
	defaultPreprompt string
	upstreamTimeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithUpstreamTimeout bounds every call to the remote service. Zero
// disables the deadline.
func WithUpstreamTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.upstreamTimeout = d
	}
}

// WithDefaults sets the model and preprompt used when a request carries
// neither.
func WithDefaults(model, preprompt string) Option {
	return func(s *Service) {
		if model != "" {
			s.defaultModel = model
		}
		s.defaultPreprompt = preprompt
	}
}

func NewService(client domain.ConversationClient, store domain.SessionStore, opts ...Option) *Service {
	s := &Service{
		client:       client,
		store:        store,
		now:          time.Now,
		defaultModel: config.FallbackModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) upstreamCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.upstreamTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.upstreamTimeout)
}

type StartSessionInput struct {
	ClientIP  domain.ClientIP
	Model     string
	Preprompt string
}

type StartSessionOutput struct {
	Session *domain.Session
}

// StartSession opens a remote conversation and registers a session for the
// client. Any prior session for the same client is evicted by the store.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	model := in.Model
	if model == "" {
		model = s.defaultModel
	}
	if !config.IsValidModel(model) {
		return nil, domain.NewError(domain.KindInvalidModel, "invalid model: %s", model)
	}

	preprompt := in.Preprompt
	if preprompt == "" {
		preprompt = s.defaultPreprompt
	}

	log := observability.LoggerFromContext(ctx).With(
		"client_ip", in.ClientIP,
		"model", model,
	)
	log.Info("starting chat session")

	upCtx, cancel := s.upstreamCtx(ctx)
	defer cancel()

	handle, err := s.client.Open(upCtx, model, config.ModelLocation(model), preprompt)
	if err != nil {
		log.Error("failed to open conversation", "error", err)
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:           domain.SessionID(uuid.NewString()),
		ClientIP:     in.ClientIP,
		Model:        model,
		Handle:       handle,
		TurnMu:       &sync.Mutex{},
		History:      []domain.Content{},
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(domain.SessionTTL),
	}

	if err := s.store.Create(session); err != nil {
		log.Error("failed to store session", "error", err)
		return nil, err
	}

	log.Info("chat session started", "session_id", session.ID)

	return &StartSessionOutput{Session: session.Snapshot()}, nil
}

type SendMessageInput struct {
	SessionID domain.SessionID
	ClientIP  domain.ClientIP
	Message   string

	// AttachmentPath points at a previously staged binary file; the caller
	// owns the file and deletes it after the turn.
	AttachmentPath string
	AttachmentMIME string
}

type TokenCount struct {
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

type SendMessageOutput struct {
	Reply   string
	Session *domain.Session
	Tokens  TokenCount
}

// SendMessage executes one conversational turn. The session is mutated only
// after the upstream turn fully succeeds; a failed turn leaves history and
// token totals untouched.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	session, err := s.store.Lookup(in.SessionID, in.ClientIP)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", session.ID,
		"client_ip", session.ClientIP,
		"model", session.Model,
	)

	// Turns on one session are serialized; concurrent turns on the same
	// remote conversation have no defined history ordering.
	if session.TurnMu != nil {
		session.TurnMu.Lock()
		defer session.TurnMu.Unlock()
	}

	parts := []domain.Part{domain.TextPart(in.Message)}
	if in.AttachmentPath != "" {
		data, err := os.ReadFile(in.AttachmentPath)
		if err != nil {
			log.Error("failed to read attachment", "error", err)
			return nil, domain.WrapError(err, domain.KindAttachmentRead, "failed to process attachment")
		}
		mime := in.AttachmentMIME
		if mime == "" {
			mime = "application/pdf"
		}
		parts = append(parts, domain.BlobPart(mime, data))
	}

	upCtx, cancel := s.upstreamCtx(ctx)
	defer cancel()

	promptTokens, err := session.Handle.CountTokens(upCtx, parts)
	if err != nil {
		// Accounting is best-effort and never blocks a turn.
		log.Warn("prompt token count failed", "error", err)
		promptTokens = 0
	}

	reply, history, err := session.Handle.SendTurn(upCtx, parts)
	if err != nil {
		log.Error("turn failed", "error", err)
		return nil, err
	}

	responseTokens, err := session.Handle.CountTokens(upCtx, []domain.Part{domain.TextPart(reply)})
	if err != nil {
		log.Warn("response token count failed", "error", err)
		responseTokens = 0
	}

	turnTokens := promptTokens + responseTokens
	updated, err := s.store.CompleteTurn(session.ID, domain.RedactHistory(history), turnTokens)
	if err != nil {
		// The session was deleted while the turn was in flight.
		return nil, err
	}

	log.Info("turn completed",
		"prompt_tokens", promptTokens,
		"response_tokens", responseTokens,
		"total_tokens", updated.TotalTokens,
	)

	return &SendMessageOutput{
		Reply:   reply,
		Session: updated,
		Tokens: TokenCount{
			PromptTokens:   promptTokens,
			ResponseTokens: responseTokens,
			TotalTokens:    turnTokens,
		},
	}, nil
}

// GetSession returns the session snapshot iff it is live and owned by the
// client.
func (s *Service) GetSession(ctx context.Context, id domain.SessionID, ip domain.ClientIP) (*domain.Session, error) {
	return s.store.Lookup(id, ip)
}

// ListSessions returns every live session owned by the client.
func (s *Service) ListSessions(ctx context.Context, ip domain.ClientIP) []*domain.Session {
	return s.store.ListByClient(ip)
}

// DeleteSession removes the session iff it is owned by the client.
func (s *Service) DeleteSession(ctx context.Context, id domain.SessionID, ip domain.ClientIP) bool {
	deleted := s.store.Delete(id, ip)
	if deleted {
		observability.LoggerFromContext(ctx).Info("session deleted", "session_id", id)
	}
	return deleted
}

// DeleteAllSessions removes every session owned by the client and returns
// how many were removed.
func (s *Service) DeleteAllSessions(ctx context.Context, ip domain.ClientIP) int {
	deleted := s.store.DeleteAllForClient(ip)
	if deleted > 0 {
		observability.LoggerFromContext(ctx).Info("sessions deleted", "client_ip", ip, "count", deleted)
	}
	return deleted
}

type GenerateInput struct {
	Model     string
	Preprompt string
	Prompt    string
	PDFPath   string
}

// Generate runs the one-shot, sessionless document + prompt flow.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (string, error) {
	model := in.Model
	if model == "" {
		model = s.defaultModel
	}
	if !config.IsValidModel(model) {
		return "", domain.NewError(domain.KindInvalidModel, "invalid model: %s", model)
	}

	preprompt := in.Preprompt
	if preprompt == "" {
		preprompt = s.defaultPreprompt
	}

	data, err := os.ReadFile(in.PDFPath)
	if err != nil {
		return "", domain.WrapError(err, domain.KindAttachmentRead, "failed to process attachment")
	}

	upCtx, cancel := s.upstreamCtx(ctx)
	defer cancel()

	parts := []domain.Part{
		domain.TextPart(in.Prompt),
		domain.BlobPart("application/pdf", data),
	}
	return s.client.Generate(upCtx, model, config.ModelLocation(model), preprompt, parts)
}
