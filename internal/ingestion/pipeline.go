// Package ingestion implements the catalog ingestion pipeline.
// It loads Cosmic Works record files (JSON arrays of products, customers,
// and sales orders), validates each document, persists them to the catalog,
// and embeds product descriptions into the vector index for semantic search.
// This pipeline is invoked by the `cosmo ingest` CLI command.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosmicworks/cosmo/internal/models"
	"github.com/cosmicworks/cosmo/internal/rag"
)

// Kind identifies the record type contained in a source file.
type Kind string

const (
	// KindProducts is a JSON array of product documents.
	KindProducts Kind = "products"
	// KindCustomers is a JSON array of customer documents.
	KindCustomers Kind = "customers"
	// KindSalesOrders is a JSON array of sales order documents.
	KindSalesOrders Kind = "salesOrders"
)

// Source describes one record file to be ingested.
type Source struct {
	// Location is a local file path or an HTTP(S) URL of the JSON array.
	Location string

	// Kind identifies the record type in the file.
	Kind Kind
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// EmbedBatchSize is the number of product texts sent per embedding
	// request. Defaults to 10 if zero.
	EmbedBatchSize int

	// PaceInterval is the minimum gap between embedding requests, protecting
	// rate-limited embedding backends. Defaults to 500ms if zero.
	PaceInterval time.Duration

	// HTTPTimeout is the timeout for each source fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// catalogWriter is the write surface of the record store the pipeline
// persists into. *catalog.Store satisfies it; tests inject a fake.
type catalogWriter interface {
	UpsertProduct(ctx context.Context, p models.Product) error
	UpsertCustomer(ctx context.Context, c models.Customer) error
	UpsertSalesOrder(ctx context.Context, so models.SalesOrder) error
}

// Pipeline orchestrates the load → validate → persist → embed → index flow
// for a set of record sources.
type Pipeline struct {
	// embedder converts product texts into dense vector embeddings.
	embedder rag.Embedder

	// index receives the embedded product vectors.
	index rag.VectorIndex

	// catalog persists the validated records.
	catalog catalogWriter

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// pace spaces out embedding requests.
	pace *rate.Limiter

	// httpClient is the HTTP client used for fetching remote sources.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, catalog catalogWriter, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("ingestion: catalog must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 10
	}
	if cfg.PaceInterval <= 0 {
		cfg.PaceInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "cosmo/1.0 (catalog ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		index:    index,
		catalog:  catalog,
		cfg:      cfg,
		pace:     rate.NewLimiter(rate.Every(cfg.PaceInterval), 1),
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest loads, validates, persists, and (for products) embeds all provided
// sources. Sources are processed sequentially and the first error aborts the
// run. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, src := range sources {
		progress(fmt.Sprintf("loading %s", src.Location))

		data, err := p.load(ctx, src.Location)
		if err != nil {
			return fmt.Errorf("ingestion: load failed for %s: %w", src.Location, err)
		}

		switch src.Kind {
		case KindProducts:
			err = p.ingestProducts(ctx, data, progress)
		case KindCustomers:
			err = p.ingestCustomers(ctx, data, progress)
		case KindSalesOrders:
			err = p.ingestSalesOrders(ctx, data, progress)
		default:
			err = fmt.Errorf("unknown source kind %q", src.Kind)
		}
		if err != nil {
			return fmt.Errorf("ingestion: %s: %w", src.Location, err)
		}
	}

	return nil
}

// ingestProducts validates and persists products, then embeds their
// description texts batch by batch and upserts the vectors into the index.
func (p *Pipeline) ingestProducts(ctx context.Context, data []byte, progress func(msg string)) error {
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("decode products: %w", err)
	}

	for _, prod := range products {
		if err := p.catalog.UpsertProduct(ctx, prod); err != nil {
			return fmt.Errorf("persist product %s: %w", prod.ID, err)
		}
	}
	progress(fmt.Sprintf("persisted %d products", len(products)))

	for start := 0; start < len(products); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		texts := make([]string, len(batch))
		for i, prod := range batch {
			texts[i] = prod.EmbeddingText()
		}

		if err := p.pace.Wait(ctx); err != nil {
			return fmt.Errorf("pacing interrupted: %w", err)
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch at %d: got %d vectors for %d texts", start, len(vectors), len(batch))
		}

		points := make([]rag.Point, len(batch))
		for i, prod := range batch {
			points[i] = rag.Point{ID: prod.ID, Vector: vectors[i]}
		}
		if err := p.index.Upsert(ctx, points); err != nil {
			return fmt.Errorf("index batch at %d: %w", start, err)
		}

		progress(fmt.Sprintf("embedded products %d-%d of %d", start+1, end, len(products)))
	}

	return nil
}

// ingestCustomers validates and persists customer documents.
func (p *Pipeline) ingestCustomers(ctx context.Context, data []byte, progress func(msg string)) error {
	var customers []models.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return fmt.Errorf("decode customers: %w", err)
	}

	for _, c := range customers {
		if err := p.catalog.UpsertCustomer(ctx, c); err != nil {
			return fmt.Errorf("persist customer %s: %w", c.ID, err)
		}
	}
	progress(fmt.Sprintf("persisted %d customers", len(customers)))
	return nil
}

// ingestSalesOrders validates and persists sales order documents.
func (p *Pipeline) ingestSalesOrders(ctx context.Context, data []byte, progress func(msg string)) error {
	var orders []models.SalesOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("decode sales orders: %w", err)
	}

	for _, so := range orders {
		if err := p.catalog.UpsertSalesOrder(ctx, so); err != nil {
			return fmt.Errorf("persist sales order %s: %w", so.ID, err)
		}
	}
	progress(fmt.Sprintf("persisted %d sales orders", len(orders)))
	return nil
}

// load reads a source's raw bytes from a local path or an HTTP(S) URL.
func (p *Pipeline) load(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return p.fetch(ctx, location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// fetch retrieves the raw content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}
