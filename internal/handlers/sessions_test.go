package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/laminate-navigator/api/internal/domain"
	"github.com/laminate-navigator/api/internal/platform/pagination"
	"github.com/laminate-navigator/api/internal/repositories"
	"github.com/laminate-navigator/api/internal/services"
	"github.com/laminate-navigator/api/internal/sessions"
)

type stubConversationService struct {
	result services.TurnResult
	err    error

	gotPhrase    string
	gotBatchSize int
	calls        int
}

func (s *stubConversationService) ProcessTurn(_ context.Context, state *domain.ConversationState, phrase string, batchSize int) (services.TurnResult, error) {
	s.calls++
	s.gotPhrase = phrase
	s.gotBatchSize = batchSize
	if s.err != nil {
		return services.TurnResult{}, s.err
	}
	state.History = append(state.History,
		domain.Message{Speaker: domain.SpeakerUser, Text: phrase},
		domain.Message{Speaker: domain.SpeakerAgent, Text: s.result.Description},
	)
	state.LastColorKey = s.result.ColorKey
	return s.result, nil
}

func newTestStore(t *testing.T) *sessions.Store {
	t.Helper()
	return sessions.NewStore(sessions.Options{
		TTL:       time.Hour,
		MaxColors: 16,
		Clock:     time.Now,
	})
}

func newTestServer(store *sessions.Store, chat services.ConversationService) http.Handler {
	h := NewSessionHandlers(store, chat, pagination.Options{
		DefaultBatchSize: 4,
		MaxBatchSize:     20,
	})
	return NewRouter(WithSessionRoutes(h.Routes))
}

func TestCreateSessionReturnsID(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(store, &stubConversationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var body createSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.SessionID == "" {
		t.Fatal("expected a non-empty session id")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", store.Len())
	}
}

func TestPostMessageRunsTurn(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{
		result: services.TurnResult{
			ColorKey:    "1A2B3C",
			Description: "Deep teal laminate.",
			Matches: []domain.RankedEntry{
				{Name: "Ocean", SKU: "SKU-1", Link: "https://example.test/1", Distance: 2.5},
			},
		},
	}
	srv := newTestServer(store, chat)
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"something like the sea"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if chat.gotPhrase != "something like the sea" {
		t.Fatalf("unexpected phrase forwarded: %q", chat.gotPhrase)
	}
	if chat.gotBatchSize != 4 {
		t.Fatalf("expected default batch size 4, got %d", chat.gotBatchSize)
	}

	var body turnResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.SessionID != id {
		t.Fatalf("expected session id %s, got %s", id, body.SessionID)
	}
	if body.Hexcode != "1A2B3C" {
		t.Fatalf("expected color 1A2B3C, got %s", body.Hexcode)
	}
	if len(body.Matches) != 1 || body.Matches[0].SKU != "SKU-1" {
		t.Fatalf("unexpected matches payload: %+v", body.Matches)
	}
}

func TestPostMessageHonoursBatchSize(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{result: services.TurnResult{ColorKey: "ABCDEF"}}
	srv := newTestServer(store, chat)
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"warm walnut","batch_size":7}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if chat.gotBatchSize != 7 {
		t.Fatalf("expected batch size 7, got %d", chat.gotBatchSize)
	}
}

func TestPostMessageRejectsInvalidBatchSize(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{}
	srv := newTestServer(store, chat)
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"anything","batch_size":-1}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if chat.calls != 0 {
		t.Fatalf("expected conversation service untouched, got %d calls", chat.calls)
	}
}

func TestPostMessageUnknownSession(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(store, &stubConversationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/no-such-session/messages", strings.NewReader(`{"message":"hello"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "session_not_found" {
		t.Fatalf("expected error code session_not_found, got %v", body["error"])
	}
}

func TestPostMessageEmptyBody(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(store, &stubConversationService{})
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader("   "))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPostMessageAgentFailure(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{err: services.ErrAgentResponse}
	srv := newTestServer(store, chat)
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"greenish"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "agent_response_invalid" {
		t.Fatalf("expected error code agent_response_invalid, got %v", body["error"])
	}
}

func TestPostMessageCatalogUnavailable(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{err: repositories.ErrCatalogUnavailable}
	srv := newTestServer(store, chat)
	id := store.Create()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"greenish"}`))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestResetSessionClearsState(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{result: services.TurnResult{ColorKey: "ABCDEF", Description: "x"}}
	srv := newTestServer(store, chat)
	id := store.Create()

	post := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"off white"}`))
	srv.ServeHTTP(httptest.NewRecorder(), post)

	reset := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, reset)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}

	hist := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history", nil)
	hrr := httptest.NewRecorder()
	srv.ServeHTTP(hrr, hist)

	var body historyResponse
	if err := json.Unmarshal(hrr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.History) != 0 {
		t.Fatalf("expected empty history after reset, got %d entries", len(body.History))
	}
	if body.LastColor != "" {
		t.Fatalf("expected cleared color after reset, got %s", body.LastColor)
	}
}

func TestGetHistoryReturnsTranscript(t *testing.T) {
	store := newTestStore(t)
	chat := &stubConversationService{result: services.TurnResult{ColorKey: "1A2B3C", Description: "Teal."}}
	srv := newTestServer(store, chat)
	id := store.Create()

	post := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", strings.NewReader(`{"message":"sea green"}`))
	srv.ServeHTTP(httptest.NewRecorder(), post)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/history", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body historyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.LastColor != "1A2B3C" {
		t.Fatalf("expected last color 1A2B3C, got %s", body.LastColor)
	}
	if len(body.History) != 2 {
		t.Fatalf("expected two history entries, got %d", len(body.History))
	}
	if body.History[0].Speaker != domain.SpeakerUser || body.History[0].Text != "sea green" {
		t.Fatalf("unexpected first history entry: %+v", body.History[0])
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	srv := newTestServer(newTestStore(t), &stubConversationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected error code route_not_found, got %v", body["error"])
	}
}
