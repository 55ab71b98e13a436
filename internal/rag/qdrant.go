package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: product_v).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance. Points are
// keyed by the catalog record identity (a UUID in the Cosmic Works dataset)
// and carry no payload — the index holds vectors only, full records live in
// the catalog.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorIndex.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "product_v"
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of points keyed by record identity.
func (s *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	qPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qPoints = append(qPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         qPoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k record
// identities with their scores, closest match first. Payloads stay disabled
// so only ids and scores cross the wire.
func (s *QdrantIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Hit, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
		})
	}

	return hits, nil
}

// Delete removes points from the collection by their record identities.
func (s *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Client exposes the underlying Qdrant gRPC client for callers that need
// direct access, such as the server's readiness pinger.
func (s *QdrantIndex) Client() *qdrant.Client {
	return s.client
}

// Ping calls the Qdrant HealthCheck RPC. Used by the readiness probe.
func (s *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
