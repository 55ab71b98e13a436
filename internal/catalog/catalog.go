// Package catalog provides a SQLite-backed document store for the Cosmic
// Works record collections: products, customers, and sales orders. Documents
// are stored as JSON and validated on the way out, so a malformed document
// fails with a models.ValidationError instead of surfacing as a broken
// half-constructed record downstream.
//
// The product collection co-locates the embedding vector with the document;
// callers outside the retrieval subsystem receive products through the
// WithoutVector view.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/cosmicworks/cosmo/internal/models"
)

// ErrNotFound is returned when no document matches the requested identity
// or field value.
var ErrNotFound = errors.New("record not found")

// productFields whitelists the product attributes addressable by field
// lookups. Field names arrive from LLM tool calls, so anything outside this
// set is rejected before it reaches the query.
var productFields = map[string]bool{
	"id":   true,
	"sku":  true,
	"name": true,
}

// Store is a SQLite-backed document store for the three record collections.
type Store struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database.
// It resolves to ~/.cosmo/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".cosmo")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a catalog Store at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. One table per
// collection, each row a full JSON document keyed by its identity field.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS products (
    id   TEXT PRIMARY KEY,
    sku  TEXT NOT NULL,
    doc  TEXT NOT NULL  -- full JSON document including contentVector
);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products (sku);
CREATE TABLE IF NOT EXISTS customers (
    id   TEXT PRIMARY KEY,
    doc  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sales_orders (
    id   TEXT PRIMARY KEY,
    doc  TEXT NOT NULL
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// UpsertProduct validates and stores a product document, replacing any
// existing document with the same id.
func (s *Store) UpsertProduct(ctx context.Context, p models.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("catalog: marshal product %q: %w", p.ID, err)
	}
	const q = `
INSERT INTO products (id, sku, doc) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET sku = excluded.sku, doc = excluded.doc`
	if _, err := s.db.ExecContext(ctx, q, p.ID, p.SKU, string(doc)); err != nil {
		return fmt.Errorf("catalog: upsert product %q: %w", p.ID, err)
	}
	return nil
}

// UpsertCustomer validates and stores a customer document.
func (s *Store) UpsertCustomer(ctx context.Context, c models.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("catalog: marshal customer %q: %w", c.ID, err)
	}
	const q = `INSERT INTO customers (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`
	if _, err := s.db.ExecContext(ctx, q, c.ID, string(doc)); err != nil {
		return fmt.Errorf("catalog: upsert customer %q: %w", c.ID, err)
	}
	return nil
}

// UpsertSalesOrder validates and stores a sales order document.
func (s *Store) UpsertSalesOrder(ctx context.Context, so models.SalesOrder) error {
	if err := so.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(so)
	if err != nil {
		return fmt.Errorf("catalog: marshal sales order %q: %w", so.ID, err)
	}
	const q = `INSERT INTO sales_orders (id, doc) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`
	if _, err := s.db.ExecContext(ctx, q, so.ID, string(doc)); err != nil {
		return fmt.Errorf("catalog: upsert sales order %q: %w", so.ID, err)
	}
	return nil
}

// ProductByID fetches a product by its identity. The returned product still
// carries its embedding — strip it with WithoutVector before returning it to
// anything outside the retrieval subsystem.
func (s *Store) ProductByID(ctx context.Context, id string) (models.Product, error) {
	const q = `SELECT doc FROM products WHERE id = ?`
	return decodeProduct(s.db.QueryRowContext(ctx, q, id))
}

// ProductByField fetches at most one product whose field exactly matches the
// given value. Field names are whitelisted. When multiple products share the
// value, one implementation-chosen row is returned (documented non-uniqueness
// tolerance, matching TOP 1 semantics).
func (s *Store) ProductByField(ctx context.Context, field, value string) (models.Product, error) {
	if !productFields[field] {
		return models.Product{}, fmt.Errorf("catalog: field %q is not queryable", field)
	}
	// field is whitelisted above, so interpolating the JSON path is safe.
	q := fmt.Sprintf(`SELECT doc FROM products WHERE json_extract(doc, '$.%s') = ? LIMIT 1`, field)
	return decodeProduct(s.db.QueryRowContext(ctx, q, value))
}

// CustomerByID fetches a customer by its identity.
func (s *Store) CustomerByID(ctx context.Context, id string) (models.Customer, error) {
	const q = `SELECT doc FROM customers WHERE id = ?`
	var raw string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Customer{}, ErrNotFound
		}
		return models.Customer{}, fmt.Errorf("catalog: customer %q: %w", id, err)
	}

	var c models.Customer
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Customer{}, &models.ValidationError{Collection: "customer", Reason: "undecodable document", Err: err}
	}
	if err := c.Validate(); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

// SalesOrderByID fetches a sales order by its identity.
func (s *Store) SalesOrderByID(ctx context.Context, id string) (models.SalesOrder, error) {
	const q = `SELECT doc FROM sales_orders WHERE id = ?`
	var raw string
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SalesOrder{}, ErrNotFound
		}
		return models.SalesOrder{}, fmt.Errorf("catalog: sales order %q: %w", id, err)
	}

	var so models.SalesOrder
	if err := json.Unmarshal([]byte(raw), &so); err != nil {
		return models.SalesOrder{}, &models.ValidationError{Collection: "salesOrder", Reason: "undecodable document", Err: err}
	}
	if err := so.Validate(); err != nil {
		return models.SalesOrder{}, err
	}
	return so, nil
}

// CountProducts returns the number of products in the catalog. Used by the
// ingest command to report progress and by readiness diagnostics.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count products: %w", err)
	}
	return n, nil
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// decodeProduct scans a single product row and validates it at the boundary.
func decodeProduct(row *sql.Row) (models.Product, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("catalog: product scan: %w", err)
	}

	var p models.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.Product{}, &models.ValidationError{Collection: "product", Reason: "undecodable document", Err: err}
	}
	if err := p.Validate(); err != nil {
		return models.Product{}, err
	}
	return p, nil
}
