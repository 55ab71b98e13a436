package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cosmicworks/cosmo/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full ReAct loop with tool calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry is the Prometheus registry metrics are registered against.
	// If nil, a fresh registry is created (exposed at GET /metrics).
	Registry *prometheus.Registry
}

// responder is the interface handleAI calls to produce an answer for one
// conversation turn. The agent pool satisfies it via PoolResponder; tests
// inject a fake.
type responder interface {
	// Respond runs one turn of the session's conversation and returns the
	// assistant's answer.
	Respond(ctx context.Context, sessionID, prompt string) (string, error)
}

// sessionReader is the read-only session surface the session endpoints use.
// session.Store satisfies it; tests inject a fake.
type sessionReader interface {
	// List returns summaries of all stored sessions.
	List(ctx context.Context) ([]session.Summary, error)
	// Load returns the full session, or session.ErrNotFound.
	Load(ctx context.Context, id string) (*session.Session, error)
}

// Server is the HTTP server that fronts the Cosmo agent pool and the
// session store.
type Server struct {
	// responder produces the assistant answer for POST /ai.
	responder responder
	// sessions serves the GET /session/* endpoints.
	sessions sessionReader
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// aiRequest is the JSON body for POST /ai.
type aiRequest struct {
	// SessionID names the conversation. An empty id or the literal "1234"
	// requests a brand new session.
	SessionID string `json:"session_id"`
	// Prompt is the user's natural language message.
	Prompt string `json:"prompt"`
}

// aiResponse is the JSON response for POST /ai.
type aiResponse struct {
	// Message is the assistant's answer for this turn.
	Message string `json:"message"`
	// SessionID is the id the turn ran under. Differs from the request when
	// a new session was minted.
	SessionID string `json:"session_id"`
}
