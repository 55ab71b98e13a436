// Package rag defines the interfaces for the retrieval subsystem: text
// embedding, vector similarity search, and the product retriever that ties
// them to the catalog. Concrete implementations (Qdrant, etc.) satisfy these
// interfaces so the agent layer never depends on a specific backend.
package rag

import (
	"context"

	"github.com/cosmicworks/cosmo/internal/models"
)

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Point is a vector indexed under a record identity.
type Point struct {
	// ID is the record identity the vector belongs to.
	ID string
	// Vector is the embedding over the record's text.
	Vector []float32
}

// Hit is one similarity match: the record identity and its score, nothing
// else. The index deliberately never returns record payloads so embedding
// vectors are not transferred on the query path.
type Hit struct {
	// ID is the matched record identity.
	ID string
	// Score is the similarity score assigned by the index (higher is closer).
	Score float32
}

// VectorIndex is the interface for persisting and searching embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert stores or updates a batch of points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the identities and scores of the topK records nearest
	// to the query embedding, closest match first.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Hit, error)

	// Delete removes points by their record identities.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the index.
	Close() error
}

// Result is one retrieved product with its similarity score. The product's
// embedding is always stripped before the result leaves the retriever.
// Results are produced fresh per query and never persisted.
type Result struct {
	// Product is the full record minus its embedding.
	Product models.Product `json:"product"`
	// Score is the similarity score from the index, higher is closer.
	Score float32 `json:"similarity_score"`
}

// Retriever is the high-level interface used by the agent to fetch grounding
// records for a query. Implementations must be safe to call from multiple
// goroutines; each call is synchronous — callers needing concurrency run
// multiple calls, not an async variant.
type Retriever interface {
	// Retrieve returns up to topK products relevant to the query, closest
	// match first. A sparse collection yields fewer results, never an error.
	Retrieve(ctx context.Context, query string, topK int) ([]Result, error)
}

// ProductFetcher is the point-read contract the retriever uses to resolve
// similarity hits into full records. *catalog.Store satisfies it.
type ProductFetcher interface {
	// ProductByID fetches a product by its identity.
	ProductByID(ctx context.Context, id string) (models.Product, error)
}
