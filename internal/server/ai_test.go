package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cosmicworks/cosmo/internal/session"
)

// ---------------------------------------------------------------------------
// Fakes for /ai and /session handler tests
// ---------------------------------------------------------------------------

// fakeResponder implements the responder interface for tests. It records the
// session id and prompt it was called with.
type fakeResponder struct {
	// answer is returned as the assistant message on each Respond call.
	answer string
	// err is returned as the error value.
	err error
	// lastSessionID and lastPrompt capture the most recent call.
	lastSessionID string
	lastPrompt    string
}

func (f *fakeResponder) Respond(_ context.Context, sessionID, prompt string) (string, error) {
	f.lastSessionID = sessionID
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeSessions implements the sessionReader interface over a fixed map.
type fakeSessions struct {
	sessions map[string]*session.Session
	err      error
}

func (f *fakeSessions) List(_ context.Context) ([]session.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []session.Summary
	for _, s := range f.sessions {
		out = append(out, session.Summary{ID: s.ID, Title: s.Title})
	}
	return out, nil
}

func (f *fakeSessions) Load(_ context.Context, id string) (*session.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

// newAITestServer builds a *Server wired with the given fakes and a fresh
// metrics registry.
func newAITestServer(rsp responder, sessions sessionReader) *Server {
	return &Server{
		responder: rsp,
		sessions:  sessions,
		cfg:       &Config{Port: 8080},
		log:       slog.Default(),
		metrics:   newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /ai
// ---------------------------------------------------------------------------

func TestHandleAI_MissingPrompt(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{})
	req := httptest.NewRequest(http.MethodPost, "/ai",
		strings.NewReader(`{"session_id":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleAI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAI_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{})
	req := httptest.NewRequest(http.MethodPost, "/ai",
		strings.NewReader(`not-json`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleAI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleAI_Success(t *testing.T) {
	t.Parallel()

	rsp := &fakeResponder{answer: "The Road-650 is priced at $782.99."}
	s := newAITestServer(rsp, &fakeSessions{})

	req := httptest.NewRequest(http.MethodPost, "/ai",
		strings.NewReader(`{"session_id":"abc","prompt":"how much is the Road-650?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleAI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp aiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != rsp.answer {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.SessionID != "abc" {
		t.Errorf("expected session id to round-trip, got %q", resp.SessionID)
	}
	if rsp.lastPrompt != "how much is the Road-650?" {
		t.Errorf("responder got prompt %q", rsp.lastPrompt)
	}
}

// TestHandleAI_SentinelMintsNewSession verifies that the "1234" placeholder
// and the empty id both produce a fresh session id, returned to the caller.
func TestHandleAI_SentinelMintsNewSession(t *testing.T) {
	t.Parallel()

	for _, requested := range []string{"1234", ""} {
		rsp := &fakeResponder{answer: "hi"}
		s := newAITestServer(rsp, &fakeSessions{})

		body := fmt.Sprintf(`{"session_id":%q,"prompt":"hello"}`, requested)
		req := httptest.NewRequest(http.MethodPost, "/ai", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		s.handleAI(w, req)

		var resp aiResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.SessionID == requested || resp.SessionID == "" {
			t.Errorf("requested %q: expected a minted id, got %q", requested, resp.SessionID)
		}
		if rsp.lastSessionID != resp.SessionID {
			t.Errorf("responder ran under %q but response claims %q", rsp.lastSessionID, resp.SessionID)
		}
	}
}

func TestHandleAI_AgentError(t *testing.T) {
	t.Parallel()

	rsp := &fakeResponder{err: fmt.Errorf("LLM unavailable")}
	s := newAITestServer(rsp, &fakeSessions{})

	req := httptest.NewRequest(http.MethodPost, "/ai",
		strings.NewReader(`{"session_id":"abc","prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.handleAI(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "LLM unavailable") {
		t.Errorf("internal error detail leaked to client: %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GET /session/list and GET /session/load/{id}
// ---------------------------------------------------------------------------

func TestHandleSessionList_ReturnsSummaries(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{
		sessions: map[string]*session.Session{
			"s1": {ID: "s1", Title: "2026-01-02 10:00:00 UTC"},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/session/list", nil)
	w := httptest.NewRecorder()

	s.handleSessionList(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got []session.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("unexpected summaries: %+v", got)
	}
}

// TestHandleSessionList_EmptyIsJSONArray verifies the empty store renders as
// [] rather than null so clients can iterate unconditionally.
func TestHandleSessionList_EmptyIsJSONArray(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{})
	req := httptest.NewRequest(http.MethodGet, "/session/list", nil)
	w := httptest.NewRecorder()

	s.handleSessionList(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("expected [], got %q", got)
	}
}

func TestHandleSessionLoad_Found(t *testing.T) {
	t.Parallel()

	stored := &session.Session{
		ID:    "s1",
		Title: "2026-01-02 10:00:00 UTC",
		History: []session.Message{
			{Role: session.RoleUser, Content: "hi"},
			{Role: session.RoleAssistant, Content: "hello!"},
		},
	}
	s := newAITestServer(&fakeResponder{}, &fakeSessions{
		sessions: map[string]*session.Session{"s1": stored},
	})

	req := httptest.NewRequest(http.MethodGet, "/session/load/s1", nil)
	req.SetPathValue("id", "s1")
	w := httptest.NewRecorder()

	s.handleSessionLoad(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "s1" || len(got.History) != 2 {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestHandleSessionLoad_NotFound(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{})
	req := httptest.NewRequest(http.MethodGet, "/session/load/ghost", nil)
	req.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()

	s.handleSessionLoad(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleSessionLoad_StoreError(t *testing.T) {
	t.Parallel()

	s := newAITestServer(&fakeResponder{}, &fakeSessions{err: fmt.Errorf("disk gone")})
	req := httptest.NewRequest(http.MethodGet, "/session/load/s1", nil)
	req.SetPathValue("id", "s1")
	w := httptest.NewRecorder()

	s.handleSessionLoad(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
