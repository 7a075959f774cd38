package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/docchat/internal/domain"
	"google.golang.org/genai"
)

// Generation settings used for every conversation and one-shot call.
const maxOutputTokens = int32(8192)

func generationConfig(preprompt string) *genai.GenerateContentConfig {
	temp := float32(1.0)
	topP := float32(0.95)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: maxOutputTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}
	if preprompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(preprompt, genai.RoleUser)
	}
	return cfg
}

// GeminiConfig selects the backend for the Gemini client.
type GeminiConfig struct {
	// APIKey uses the Gemini API backend.
	APIKey string

	// ProjectID plus Location use the Vertex AI backend instead.
	ProjectID string
	Location  string
}

// GeminiClient implements domain.ConversationClient on top of the genai SDK.
type GeminiClient struct {
	cfg GeminiConfig

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by serving location
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" && cfg.ProjectID == "" {
		return nil, fmt.Errorf("either APIKey or ProjectID must be set")
	}

	c := &GeminiClient{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}

	// Fail fast on credentials by building the default client up front.
	if _, err := c.clientFor(ctx, ""); err != nil {
		return nil, err
	}
	return c, nil
}

// clientFor returns the genai client serving the given location, creating
// and caching it on first use. The Gemini API backend ignores locations and
// always uses one client.
func (c *GeminiClient) clientFor(ctx context.Context, location string) (*genai.Client, error) {
	if c.cfg.APIKey != "" {
		location = ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[location]; ok {
		return client, nil
	}

	var clientCfg *genai.ClientConfig
	if c.cfg.APIKey != "" {
		clientCfg = &genai.ClientConfig{
			APIKey:  c.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	} else {
		loc := location
		if loc == "" || loc == "global" {
			loc = c.cfg.Location
		}
		clientCfg = &genai.ClientConfig{
			Project:  c.cfg.ProjectID,
			Location: loc,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	c.clients[location] = client
	return client, nil
}

// Open implements domain.ConversationClient.
func (c *GeminiClient) Open(ctx context.Context, model, location, preprompt string) (domain.ConversationHandle, error) {
	client, err := c.clientFor(ctx, location)
	if err != nil {
		return nil, domain.WrapError(err, domain.KindUpstream, "opening conversation")
	}

	chat, err := client.Chats.Create(ctx, model, generationConfig(preprompt), nil)
	if err != nil {
		return nil, classify(ctx, err, "opening conversation")
	}

	return &geminiHandle{client: client, chat: chat, model: model}, nil
}

// Generate implements the one-shot, sessionless path.
func (c *GeminiClient) Generate(ctx context.Context, model, location, preprompt string, parts []domain.Part) (string, error) {
	client, err := c.clientFor(ctx, location)
	if err != nil {
		return "", domain.WrapError(err, domain.KindUpstream, "generate")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(toGenaiParts(parts), genai.RoleUser),
	}

	res, err := client.Models.GenerateContent(ctx, model, contents, generationConfig(preprompt))
	if err != nil {
		return "", classify(ctx, err, "generate content")
	}
	return extractText(res)
}

type geminiHandle struct {
	client *genai.Client
	chat   *genai.Chat
	model  string
}

// SendTurn implements domain.ConversationHandle.
func (h *geminiHandle) SendTurn(ctx context.Context, parts []domain.Part) (string, []domain.Content, error) {
	msg := make([]genai.Part, 0, len(parts))
	for _, p := range toGenaiParts(parts) {
		msg = append(msg, *p)
	}

	res, err := h.chat.SendMessage(ctx, msg...)
	if err != nil {
		return "", nil, classify(ctx, err, "send message")
	}

	text, err := extractText(res)
	if err != nil {
		return "", nil, err
	}

	history := fromGenaiHistory(h.chat.History(false))
	return text, history, nil
}

// CountTokens implements domain.ConversationHandle.
func (h *geminiHandle) CountTokens(ctx context.Context, parts []domain.Part) (int, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(toGenaiParts(parts), genai.RoleUser),
	}

	res, err := h.client.Models.CountTokens(ctx, h.model, contents, nil)
	if err != nil {
		return 0, classify(ctx, err, "count tokens")
	}
	return int(res.TotalTokens), nil
}

// classify maps an SDK failure to a typed domain error. Context deadline
// expiry is reported as a timeout so the session stays usable.
func classify(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(err, domain.KindUpstreamTimeout, op+" timed out")
	}
	return domain.WrapError(err, domain.KindUpstream, op+" failed")
}

// extractText pulls the reply text out of a response, surfacing safety
// blocks instead of returning an empty string.
func extractText(res *genai.GenerateContentResponse) (string, error) {
	if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", domain.WrapError(domain.ErrContentBlocked, domain.KindUpstream,
			fmt.Sprintf("prompt blocked: %s", res.PromptFeedback.BlockReason))
	}
	for _, cand := range res.Candidates {
		if cand.FinishReason == genai.FinishReasonSafety {
			return "", domain.WrapError(domain.ErrContentBlocked, domain.KindUpstream, "response blocked by safety filters")
		}
	}

	text := res.Text()
	if text == "" {
		return "", domain.NewError(domain.KindUpstream, "model returned empty text")
	}
	return text, nil
}

func toGenaiParts(parts []domain.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case domain.PartBlob:
			out = append(out, &genai.Part{
				InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Data},
			})
		default:
			out = append(out, &genai.Part{Text: p.Text})
		}
	}
	return out
}

func fromGenaiHistory(history []*genai.Content) []domain.Content {
	out := make([]domain.Content, 0, len(history))
	for _, c := range history {
		content := domain.Content{Role: fromGenaiRole(c.Role)}
		for _, p := range c.Parts {
			switch {
			case p.InlineData != nil:
				content.Parts = append(content.Parts,
					domain.BlobPart(p.InlineData.MIMEType, p.InlineData.Data))
			case p.Text != "":
				content.Parts = append(content.Parts, domain.TextPart(p.Text))
			default:
				content.Parts = append(content.Parts, domain.UnknownPart())
			}
		}
		out = append(out, content)
	}
	return out
}

func fromGenaiRole(role string) domain.Role {
	if role == string(genai.RoleModel) {
		return domain.RoleModel
	}
	return domain.RoleUser
}
