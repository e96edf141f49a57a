package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/httpx"
	"github.com/laminate-navigator/api/internal/platform/pagination"
	"github.com/laminate-navigator/api/internal/platform/requestctx"
	"github.com/laminate-navigator/api/internal/repositories"
	"github.com/laminate-navigator/api/internal/services"
	"github.com/laminate-navigator/api/internal/sessions"
)

const maxMessageBodySize = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

// SessionHandlers exposes the conversational session endpoints.
type SessionHandlers struct {
	store    *sessions.Store
	chat     services.ConversationService
	pageOpts pagination.Options
}

// NewSessionHandlers constructs handlers backed by the session store and the
// conversation service.
func NewSessionHandlers(store *sessions.Store, chat services.ConversationService, pageOpts pagination.Options) *SessionHandlers {
	return &SessionHandlers{
		store:    store,
		chat:     chat,
		pageOpts: pageOpts,
	}
}

// Routes wires the session endpoints onto the provided router.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createSession)
	r.Post("/{sessionID}/messages", h.postMessage)
	r.Post("/{sessionID}/reset", h.resetSession)
	r.Get("/{sessionID}/history", h.getHistory)
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_store_unavailable", "session store is unavailable", http.StatusServiceUnavailable))
		return
	}

	id := h.store.Create()
	writeJSONResponse(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

type postMessageRequest struct {
	Message   string `json:"message"`
	BatchSize *int   `json:"batch_size"`
}

type turnResponse struct {
	SessionID    string               `json:"session_id"`
	Hexcode      string               `json:"hexcode"`
	Description  string               `json:"description"`
	Continuation bool                 `json:"continuation"`
	Matches      []domain.RankedEntry `json:"matches"`
}

func (h *SessionHandlers) postMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil || h.chat == nil {
		httpx.WriteError(ctx, w, httpx.NewError("conversation_unavailable", "conversation service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "session id is required", http.StatusBadRequest))
		return
	}
	ctx = requestctx.WithSessionID(ctx, sessionID)

	body, err := readLimitedBody(r, maxMessageBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req postMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	batchSize, err := pagination.BatchSize(req.BatchSize, h.pageOpts)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var result services.TurnResult
	err = h.store.Turn(ctx, sessionID, func(state *domain.ConversationState) error {
		turn, turnErr := h.chat.ProcessTurn(ctx, state, req.Message, batchSize)
		if turnErr != nil {
			return turnErr
		}
		result = turn
		return nil
	})
	if err != nil {
		h.writeTurnError(ctx, w, err)
		return
	}

	matches := result.Matches
	if matches == nil {
		matches = []domain.RankedEntry{}
	}

	requestctx.Logger(ctx).Info("turn completed",
		zap.String("session_id", requestctx.SessionID(ctx)),
		zap.String("color", result.ColorKey),
		zap.Bool("continuation", result.Continuation),
		zap.Int("matches", len(matches)),
	)

	writeJSONResponse(w, http.StatusOK, turnResponse{
		SessionID:    sessionID,
		Hexcode:      result.ColorKey,
		Description:  result.Description,
		Continuation: result.Continuation,
		Matches:      matches,
	})
}

func (h *SessionHandlers) resetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_store_unavailable", "session store is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if err := h.store.Reset(sessionID); err != nil {
		h.writeTurnError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	LastColor string           `json:"last_color,omitempty"`
	History   []domain.Message `json:"history"`
}

func (h *SessionHandlers) getHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.store == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_store_unavailable", "session store is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	var payload historyResponse
	err := h.store.Turn(ctx, sessionID, func(state *domain.ConversationState) error {
		payload = historyResponse{
			SessionID: sessionID,
			LastColor: state.LastColorKey,
			History:   append([]domain.Message(nil), state.History...),
		}
		return nil
	})
	if err != nil {
		h.writeTurnError(ctx, w, err)
		return
	}

	if payload.History == nil {
		payload.History = []domain.Message{}
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *SessionHandlers) writeTurnError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found or expired", http.StatusNotFound))
	case errors.Is(err, services.ErrEmptyPhrase), errors.Is(err, pagination.ErrInvalidBatchSize):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAgentResponse), errors.Is(err, services.ErrInvalidTargetColor):
		httpx.WriteError(ctx, w, httpx.NewError("agent_response_invalid", "color collaborator returned an unusable response", http.StatusBadGateway))
	case errors.Is(err, repositories.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "laminate catalog is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request cancelled or timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxMessageBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
