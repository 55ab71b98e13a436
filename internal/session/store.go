// Package session provides a SQLite-backed store for chat sessions. Each
// session is persisted as a single document keyed by its opaque id, with the
// ordered message history serialized as JSON. Sessions survive server
// restarts and are replayed into the LLM context on subsequent turns.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message sent by the human operator.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the LLM agent.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session's history.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role"`
	// Content is the text of the message.
	Content string `json:"content"`
}

// Session is a persisted conversation thread.
type Session struct {
	// ID is the opaque session identifier, stable for the conversation's lifetime.
	ID string `json:"id"`
	// Title is the display title, set to the creation timestamp for new sessions.
	Title string `json:"title"`
	// History is the ordered message sequence. Exactly one (user, assistant)
	// pair is appended per successful turn.
	History []Message `json:"history"`
}

// Summary is the id/title projection returned by List.
type Summary struct {
	// ID is the session identifier.
	ID string `json:"session_id"`
	// Title is the session display title.
	Title string `json:"title"`
}

// ErrNotFound is returned by Load when no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// ErrUnavailable wraps transport-level failures of the backing store so
// callers can distinguish them from a plain miss.
var ErrUnavailable = errors.New("session store unavailable")

// Store persists and retrieves sessions keyed by id.
// Implementations must be safe for concurrent use. Upsert is last-write-wins;
// no version token is enforced (two concurrent turns on the same session id
// can lose one turn's history entry — documented race, see DESIGN.md).
type Store interface {
	// List returns all sessions as id/title summaries, least recently
	// written first.
	List(ctx context.Context) ([]Summary, error)
	// LoadOrCreate reads the session by id, creating and persisting a fresh
	// one on a miss. Only a miss triggers creation; any other failure is
	// returned wrapped in ErrUnavailable.
	LoadOrCreate(ctx context.Context, id string) (*Session, error)
	// Load is the strict read: ErrNotFound when the session is absent.
	Load(ctx context.Context, id string) (*Session, error)
	// Upsert replaces or inserts the full session document keyed by its id.
	Upsert(ctx context.Context, s *Session) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now returns the current time; overridable in tests for stable titles.
	now func() time.Time
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.cosmo/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("session: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".cosmo")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("session: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    title       TEXT    NOT NULL,
    history     TEXT    NOT NULL DEFAULT '[]',  -- JSON array of {role, content}
    updated_at  INTEGER NOT NULL                -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("session: migrate: %w", err)
	}
	return nil
}

// List returns all sessions as id/title summaries, least recently written
// first. The timestamp has second resolution, so id breaks ties.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	const q = `SELECT id, title FROM sessions ORDER BY updated_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title); err != nil {
			return nil, fmt.Errorf("session: list scan: %w: %w", ErrUnavailable, err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: list rows: %w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// Load reads a session by id. Returns ErrNotFound when absent.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Session, error) {
	const q = `SELECT id, title, history FROM sessions WHERE id = ?`

	var sess Session
	var historyJSON string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&sess.ID, &sess.Title, &historyJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: load %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %q: %w: %w", id, ErrUnavailable, err)
	}

	if err := json.Unmarshal([]byte(historyJSON), &sess.History); err != nil {
		return nil, fmt.Errorf("session: load %q: corrupt history: %w", id, err)
	}
	return &sess, nil
}

// LoadOrCreate reads the session by id, synthesizing and persisting a new one
// on a miss. The new session's title is the creation timestamp rendered as a
// human-readable UTC string, its history empty. Concurrent create-on-miss for
// the same id resolves by last-write-wins on the upsert — both callers end up
// observing a valid session.
func (s *SQLiteStore) LoadOrCreate(ctx context.Context, id string) (*Session, error) {
	sess, err := s.Load(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess = &Session{
		ID:      id,
		Title:   s.now().UTC().Format("2006-01-02 15:04:05 UTC"),
		History: []Message{},
	}
	if err := s.Upsert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Upsert replaces or inserts the full session document keyed by its id.
func (s *SQLiteStore) Upsert(ctx context.Context, sess *Session) error {
	history := sess.History
	if history == nil {
		history = []Message{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("session: upsert %q: marshal history: %w", sess.ID, err)
	}

	const q = `
INSERT INTO sessions (id, title, history, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET title = excluded.title, history = excluded.history, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Title, string(historyJSON), s.now().Unix()); err != nil {
		return fmt.Errorf("session: upsert %q: %w: %w", sess.ID, ErrUnavailable, err)
	}
	return nil
}

// Ping verifies the database is reachable and responsive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("session: ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	return nil
}
