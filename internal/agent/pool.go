package agent

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// defaultAgentTTL is how long an idle agent stays in the pool before it
	// is evicted. Each Get refreshes the clock.
	defaultAgentTTL = 30 * time.Minute

	// poolSweepInterval is how often expired agents are purged.
	poolSweepInterval = 5 * time.Minute
)

// Builder constructs a new agent for a session id. The Pool calls it at most
// once per live session.
type Builder func(ctx context.Context, sessionID string) (*CosmoAgent, error)

// Pool caches one CosmoAgent per session so consecutive turns of the same
// conversation reuse the same ReAct agent instead of rebuilding it. Idle
// agents expire after a TTL; the next turn transparently rebuilds them from
// the persisted session history.
type Pool struct {
	mu    sync.Mutex
	cache *gocache.Cache
	build Builder
}

// NewPool constructs an agent pool with the given builder. A non-positive ttl
// selects the default.
func NewPool(build Builder, ttl time.Duration) *Pool {
	if ttl <= 0 {
		ttl = defaultAgentTTL
	}
	return &Pool{
		cache: gocache.New(ttl, poolSweepInterval),
		build: build,
	}
}

// Get returns the agent for the session, building one if none is cached.
// The entry's TTL is refreshed on every hit.
func (p *Pool) Get(ctx context.Context, sessionID string) (*CosmoAgent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache.Get(sessionID); ok {
		p.cache.SetDefault(sessionID, cached)
		return cached.(*CosmoAgent), nil
	}

	a, err := p.build(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(sessionID, a)
	return a, nil
}

// Respond runs one conversation turn for the session, building or reusing
// its agent. This is the entry point the HTTP server calls per /ai request.
func (p *Pool) Respond(ctx context.Context, sessionID, prompt string) (string, error) {
	a, err := p.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return a.Run(ctx, prompt)
}

// Len reports how many agents are currently cached.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.ItemCount()
}
