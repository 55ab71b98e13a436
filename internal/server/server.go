// Package server implements the HTTP server that exposes the Cosmo agent
// via a REST API: the conversational /ai endpoint plus session listing and
// replay. The server is started by the `cosmo serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cosmicworks/cosmo/internal/logging"
	"github.com/cosmicworks/cosmo/internal/session"
)

// newSessionSentinel is the client-side placeholder id that requests a brand
// new session. Kept for compatibility with existing frontends that send it.
const newSessionSentinel = "1234"

// New constructs a Server from the provided responder, session store, and config.
func New(rsp responder, sessions sessionReader, cfg *Config) (*Server, error) {
	if rsp == nil {
		return nil, fmt.Errorf("server: responder must not be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server: session store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// A ReAct turn with several tool calls can take minutes.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		responder: rsp,
		sessions:  sessions,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("auth: COSMO_API_KEY not set — API authentication is disabled")
	}

	mux := http.NewServeMux()
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}
	mux.Handle("POST /ai", protected("ai", s.handleAI))
	mux.Handle("GET /session/list", protected("session_list", s.handleSessionList))
	mux.Handle("GET /session/load/{id}", protected("session_load", s.handleSessionLoad))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      corsMiddleware(requestLogger(log, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("cosmo server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAI handles POST /ai. It resolves the session id (minting a fresh one
// for the sentinel), runs one conversation turn, and returns the assistant's
// answer together with the id the turn was persisted under.
func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	var req aiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" || sessionID == newSessionSentinel {
		sessionID = uuid.NewString()
	}

	start := time.Now()
	s.metrics.aiActiveRequests.Inc()
	defer s.metrics.aiActiveRequests.Dec()

	answer, err := s.responder.Respond(r.Context(), sessionID, req.Prompt)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(r.Context().Err(), context.Canceled) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	s.metrics.aiRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.aiDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		logging.FromContext(r.Context()).Error("ai turn failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		http.Error(w, "agent error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, aiResponse{Message: answer, SessionID: sessionID})
}

// handleSessionList handles GET /session/list. It returns summaries (id and
// title only) for every stored session, least recently updated first.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("session list failed", slog.Any("error", err))
		http.Error(w, "session store error", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleSessionLoad handles GET /session/load/{id}. It returns the full
// session document including history, or 404 when the id is unknown.
func (s *Server) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := s.sessions.Load(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("session load failed",
			slog.String("session_id", id),
			slog.Any("error", err),
		)
		http.Error(w, "session store error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
