package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/cosmicworks/cosmo/internal/session"
)

// fakeChatModel answers every Generate call with a fixed assistant message
// and no tool calls, so the ReAct loop terminates after one step.
type fakeChatModel struct {
	answer string
}

func (m *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.answer, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(schema.AssistantMessage(m.answer, nil), nil)
	sw.Close()
	return sr, nil
}

func (m *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// fakeSessionStore is an in-memory session.Store. Load and Upsert copy the
// document, matching the SQLite store's value semantics.
type fakeSessionStore struct {
	sessions  map[string]*session.Session
	upsertErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*session.Session{}}
}

func (s *fakeSessionStore) List(ctx context.Context) ([]session.Summary, error) {
	var out []session.Summary
	for _, sess := range s.sessions {
		out = append(out, session.Summary{ID: sess.ID, Title: sess.Title})
	}
	return out, nil
}

func (s *fakeSessionStore) LoadOrCreate(ctx context.Context, id string) (*session.Session, error) {
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &session.Session{ID: id, Title: "fake session"}
	}
	return s.Load(ctx, id)
}

func (s *fakeSessionStore) Load(ctx context.Context, id string) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *sess
	cp.History = append([]session.Message(nil), sess.History...)
	return &cp, nil
}

func (s *fakeSessionStore) Upsert(ctx context.Context, sess *session.Session) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *sess
	cp.History = append([]session.Message(nil), sess.History...)
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *fakeSessionStore) Close() error { return nil }

func newRunTestAgent(t *testing.T, store session.Store, answer string) *CosmoAgent {
	t.Helper()
	a, err := New(context.Background(), &Config{
		ChatModel: &fakeChatModel{answer: answer},
		Sessions:  store,
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func Test_Run_PersistsOnePairPerTurn(t *testing.T) {
	t.Parallel()
	store := newFakeSessionStore()
	a := newRunTestAgent(t, store, "the Mountain-100 costs $3399.99")

	ctx := context.Background()
	answer, err := a.Run(ctx, "how much is the Mountain-100?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if answer != "the Mountain-100 costs $3399.99" {
		t.Errorf("unexpected answer %q", answer)
	}

	if _, err := a.Run(ctx, "and in silver?"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	sess, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sess.History) != 4 {
		t.Fatalf("two turns must persist 4 history entries, got %d", len(sess.History))
	}
	for i, want := range []session.Role{session.RoleUser, session.RoleAssistant, session.RoleUser, session.RoleAssistant} {
		if sess.History[i].Role != want {
			t.Errorf("history[%d]: role = %s, want %s", i, sess.History[i].Role, want)
		}
	}
	if sess.History[2].Content != "and in silver?" {
		t.Errorf("history[2]: got %q", sess.History[2].Content)
	}
}

func Test_Run_PersistFailureIsAnError(t *testing.T) {
	t.Parallel()
	store := newFakeSessionStore()
	a := newRunTestAgent(t, store, "an answer that must not be lost")

	store.upsertErr = session.ErrUnavailable

	answer, err := a.Run(context.Background(), "hello")
	if err == nil {
		t.Fatal("run must fail when the turn cannot be persisted")
	}
	if !errors.Is(err, session.ErrUnavailable) {
		t.Errorf("error must wrap ErrUnavailable, got %v", err)
	}
	if answer != "" {
		t.Errorf("failed turn must not return an answer, got %q", answer)
	}

	sess, loadErr := store.Load(context.Background(), "s1")
	if loadErr != nil {
		t.Fatalf("load: %v", loadErr)
	}
	if len(sess.History) != 0 {
		t.Errorf("failed turn must leave history unchanged, got %d entries", len(sess.History))
	}
}

func Test_BuildMessages_OrderAndRoles(t *testing.T) {
	t.Parallel()
	a := &CosmoAgent{sessionID: "s1", maxContextTokens: 100_000}
	sess := &session.Session{
		ID: "s1",
		History: []session.Message{
			{Role: session.RoleUser, Content: "any mountain bikes?"},
			{Role: session.RoleAssistant, Content: "Yes, the Mountain-100 line."},
		},
	}

	msgs := a.buildMessages(context.Background(), sess, "how much is the silver one?")

	if len(msgs) != 4 {
		t.Fatalf("want 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.System || !strings.Contains(msgs[0].Content, "Cosmo") {
		t.Errorf("msg[0]: want Cosmo system prompt, got %s", msgs[0].Role)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "any mountain bikes?" {
		t.Errorf("msg[1]: unexpected history message: %s/%q", msgs[1].Role, msgs[1].Content)
	}
	if msgs[2].Role != schema.Assistant {
		t.Errorf("msg[2]: want assistant history, got %s", msgs[2].Role)
	}
	if msgs[3].Role != schema.User || msgs[3].Content != "how much is the silver one?" {
		t.Errorf("msg[3]: want current prompt last, got %s/%q", msgs[3].Role, msgs[3].Content)
	}
}

func Test_BuildMessages_TrimsOldestHistoryToBudget(t *testing.T) {
	t.Parallel()
	// Budget large enough for the fixed messages plus roughly one history
	// entry, so older turns must be dropped first.
	a := &CosmoAgent{sessionID: "s1", maxContextTokens: 1200}

	long := strings.Repeat("padding ", 400)
	sess := &session.Session{
		ID: "s1",
		History: []session.Message{
			{Role: session.RoleUser, Content: "oldest " + long},
			{Role: session.RoleAssistant, Content: "old answer " + long},
			{Role: session.RoleUser, Content: "newest question"},
			{Role: session.RoleAssistant, Content: "newest answer"},
		},
	}

	msgs := a.buildMessages(context.Background(), sess, "current prompt")

	for _, m := range msgs {
		if strings.HasPrefix(m.Content, "oldest") {
			t.Error("oldest history entry survived trimming")
		}
	}
	var sawNewest bool
	for _, m := range msgs {
		if m.Content == "newest answer" {
			sawNewest = true
		}
	}
	if !sawNewest {
		t.Error("newest history entry was dropped")
	}
	if msgs[len(msgs)-1].Content != "current prompt" {
		t.Error("current prompt must always be last")
	}
}

func Test_Pool_ReusesAgentPerSession(t *testing.T) {
	t.Parallel()
	builds := 0
	pool := NewPool(func(ctx context.Context, sessionID string) (*CosmoAgent, error) {
		builds++
		return &CosmoAgent{sessionID: sessionID}, nil
	}, time.Minute)

	ctx := context.Background()
	first, err := pool.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := pool.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first != second {
		t.Error("same session must reuse the cached agent")
	}
	if builds != 1 {
		t.Errorf("builder ran %d times, want 1", builds)
	}

	if _, err := pool.Get(ctx, "s2"); err != nil {
		t.Fatalf("get other session: %v", err)
	}
	if builds != 2 {
		t.Errorf("builder ran %d times for two sessions, want 2", builds)
	}
	if pool.Len() != 2 {
		t.Errorf("pool holds %d agents, want 2", pool.Len())
	}
}

func Test_Pool_BuildErrorNotCached(t *testing.T) {
	t.Parallel()
	fail := true
	pool := NewPool(func(ctx context.Context, sessionID string) (*CosmoAgent, error) {
		if fail {
			return nil, errors.New("model unavailable")
		}
		return &CosmoAgent{sessionID: sessionID}, nil
	}, time.Minute)

	ctx := context.Background()
	if _, err := pool.Get(ctx, "s1"); err == nil {
		t.Fatal("want build error")
	}
	if pool.Len() != 0 {
		t.Errorf("failed build must not be cached, pool holds %d", pool.Len())
	}

	fail = false
	if _, err := pool.Get(ctx, "s1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func Test_Pool_ExpiresIdleAgents(t *testing.T) {
	t.Parallel()
	builds := 0
	pool := NewPool(func(ctx context.Context, sessionID string) (*CosmoAgent, error) {
		builds++
		return &CosmoAgent{sessionID: sessionID}, nil
	}, 20*time.Millisecond)

	ctx := context.Background()
	if _, err := pool.Get(ctx, "s1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := pool.Get(ctx, "s1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if builds != 2 {
		t.Errorf("builder ran %d times, want rebuild after expiry", builds)
	}
}
