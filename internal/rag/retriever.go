package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/cosmicworks/cosmo/internal/catalog"
	"github.com/cosmicworks/cosmo/internal/logging"
)

// defaultPaceInterval is the minimum spacing between successive embedding
// calls issued by one retriever instance. The upstream embedding provider
// rate-limits aggressively; a fixed half-second pace keeps us under the
// limit without adaptive retry logic.
const defaultPaceInterval = 500 * time.Millisecond

// ProductRetriever implements Retriever by combining an Embedder, a
// VectorIndex, and the catalog. It embeds the query, asks the index for the
// nearest record identities, then resolves each identity with a point read.
// The embedding attribute is stripped from every returned record.
type ProductRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// products resolves similarity hits into full records.
	products ProductFetcher

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int

	// pace spaces out embedding calls from this instance.
	pace *rate.Limiter
}

// RetrieverConfig holds the optional knobs for NewProductRetriever.
type RetrieverConfig struct {
	// DefaultTopK is the fallback result count when Retrieve is called with
	// topK=0. Defaults to 5.
	DefaultTopK int

	// PaceInterval is the minimum spacing between embedding calls.
	// Defaults to 500ms.
	PaceInterval time.Duration
}

// NewProductRetriever constructs a ProductRetriever from the given
// dependencies.
func NewProductRetriever(embedder Embedder, index VectorIndex, products ProductFetcher, cfg *RetrieverConfig) (*ProductRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if products == nil {
		return nil, fmt.Errorf("rag: product fetcher must not be nil")
	}
	if cfg == nil {
		cfg = &RetrieverConfig{}
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	interval := cfg.PaceInterval
	if interval <= 0 {
		interval = defaultPaceInterval
	}

	return &ProductRetriever{
		embedder:    embedder,
		index:       index,
		products:    products,
		defaultTopK: topK,
		pace:        rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Retrieve embeds the query, runs the similarity search, and resolves each
// hit with a point read against the catalog. Results come back closest match
// first, at most topK of them, embeddings stripped.
//
// A hit whose record cannot be found in the catalog (deleted between the
// similarity query and the point read) is skipped with a warning rather than
// failing the whole retrieval.
func (r *ProductRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	// Honor the pacing policy before hitting the embedding provider.
	if err := r.pace.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rag: pacing wait interrupted: %w", err)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := r.index.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		product, err := r.products.ProductByID(ctx, hit.ID)
		if errors.Is(err, catalog.ErrNotFound) {
			logging.FromContext(ctx).Warn("rag: record vanished between search and fetch, skipping",
				slog.String("id", hit.ID),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rag: fetch record %q: %w", hit.ID, err)
		}

		results = append(results, Result{
			Product: product.WithoutVector(),
			Score:   hit.Score,
		})
	}

	return results, nil
}
