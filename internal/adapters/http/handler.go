package httpadapter

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/docchat/internal/app/chat"
	"github.com/PabloGalante/docchat/internal/config"
	"github.com/PabloGalante/docchat/internal/domain"
)

type Server struct {
	svc       *chat.Service
	uploadDir string
}

// NewServer builds the HTTP surface: model listing, one-shot generation,
// and the chat session endpoints, behind api-key auth.
func NewServer(svc *chat.Service, apiKey, uploadDir string) http.Handler {
	s := &Server{svc: svc, uploadDir: uploadDir}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/api/generate", s.handleGenerate)

	// /api/chat           → GET: list sessions, DELETE: delete all
	// /api/chat/session   → POST: create session
	// /api/chat/{id}          → GET / DELETE
	// /api/chat/{id}/message  → POST: send message
	mux.HandleFunc("/api/chat", s.handleChatCollection)
	mux.HandleFunc("/api/chat/", s.handleChatWithID)

	return chainMiddlewares(mux,
		withAuth(apiKey),
		withCORS,
		withLogging,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	Model     string `json:"model,omitempty"`
	Preprompt string `json:"preprompt,omitempty"`
}

type partResponse struct {
	Text string `json:"text"`
}

type contentResponse struct {
	Role  string         `json:"role"`
	Parts []partResponse `json:"parts"`
}

type sessionResponse struct {
	SessionID    string            `json:"session_id"`
	Model        string            `json:"model"`
	History      []contentResponse `json:"history"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	ExpiresAt    time.Time         `json:"expires_at"`
	ClientIP     string            `json:"client_ip"`
	TotalTokens  int               `json:"total_tokens"`
}

type tokenCountResponse struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

type sendMessageResponse struct {
	Response   string             `json:"response"`
	Session    sessionResponse    `json:"session"`
	TokenCount tokenCountResponse `json:"token_count"`
}

type generateResponse struct {
	Result string `json:"result"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]config.ModelInfo{"models": config.AllModels()})
}

func (s *Server) handleChatCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSessions(w, r)
	case http.MethodDelete:
		s.handleDeleteAllSessions(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatWithID(w http.ResponseWriter, r *http.Request) {
	// expected path:
	// /api/chat/session
	// /api/chat/{id}
	// /api/chat/{id}/message
	path := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	if path == "" {
		s.handleChatCollection(w, r)
		return
	}

	parts := strings.Split(path, "/")

	if len(parts) == 1 && parts[0] == "session" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleCreateSession(w, r)
		return
	}

	id := domain.SessionID(parts[0])

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		case http.MethodDelete:
			s.handleDeleteSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "message" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleSendMessage(w, r, id)
		return
	}

	http.NotFound(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	out, err := s.svc.StartSession(r.Context(), chat.StartSessionInput{
		ClientIP:  clientIP(r),
		Model:     req.Model,
		Preprompt: req.Preprompt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(out.Session))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	staged, err := stagePDF(w, r, s.uploadDir, false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	defer staged.Cleanup()

	message := r.FormValue("message")
	if message == "" {
		badRequest(w, "message is required")
		return
	}

	out, err := s.svc.SendMessage(r.Context(), chat.SendMessageInput{
		SessionID:      id,
		ClientIP:       clientIP(r),
		Message:        message,
		AttachmentPath: staged.Path,
		AttachmentMIME: staged.MIMEType,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Response: out.Reply,
		Session:  toSessionResponse(out.Session),
		TokenCount: tokenCountResponse{
			PromptTokens:   out.Tokens.PromptTokens,
			ResponseTokens: out.Tokens.ResponseTokens,
			TotalTokens:    out.Tokens.TotalTokens,
		},
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.svc.GetSession(r.Context(), id, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.svc.ListSessions(r.Context(), clientIP(r))
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if !s.svc.DeleteSession(r.Context(), id, clientIP(r)) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chat session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "chat session deleted successfully"})
}

func (s *Server) handleDeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	count := s.svc.DeleteAllSessions(r.Context(), clientIP(r))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Deleted %d chat sessions", count),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	staged, err := stagePDF(w, r, s.uploadDir, true)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	defer staged.Cleanup()

	prompt := r.FormValue("prompt")
	if prompt == "" {
		badRequest(w, "prompt is required")
		return
	}

	result, err := s.svc.Generate(r.Context(), chat.GenerateInput{
		Model:     r.FormValue("model"),
		Preprompt: r.FormValue("preprompt"),
		Prompt:    prompt,
		PDFPath:   staged.Path,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Result: result})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// clientIP derives the caller's identity: first hop of X-Forwarded-For if
// present, the socket address otherwise.
func clientIP(r *http.Request) domain.ClientIP {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return domain.ClientIP(strings.TrimSpace(first))
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return domain.ClientIP(r.RemoteAddr)
	}
	return domain.ClientIP(host)
}

func toSessionResponse(s *domain.Session) sessionResponse {
	history := make([]contentResponse, 0, len(s.History))
	for _, c := range s.History {
		cr := contentResponse{Role: string(c.Role), Parts: make([]partResponse, 0, len(c.Parts))}
		for _, p := range c.Parts {
			cr.Parts = append(cr.Parts, partResponse{Text: p.Text})
		}
		history = append(history, cr)
	}

	return sessionResponse{
		SessionID:    string(s.ID),
		Model:        s.Model,
		History:      history,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.LastAccessed,
		ExpiresAt:    s.ExpiresAt,
		ClientIP:     string(s.ClientIP),
		TotalTokens:  s.TotalTokens,
	}
}

// writeError maps a typed core failure to a status code.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch domain.KindOf(err) {
	case domain.KindInvalidModel, domain.KindAttachmentRead:
		status = http.StatusBadRequest
	case domain.KindSessionNotFound:
		status = http.StatusNotFound
	case domain.KindIdentityMismatch, domain.KindSessionExpired:
		status = http.StatusForbidden
	case domain.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case domain.KindUpstream:
		status = http.StatusBadGateway
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
