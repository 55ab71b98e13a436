package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cosmicworks/cosmo/internal/embedder"
	"github.com/cosmicworks/cosmo/internal/ingestion"
)

// NewIngestCmd constructs the `cosmo ingest` command, which loads Cosmic
// Works catalog data into the record store and indexes product embeddings
// into Qdrant.
func NewIngestCmd() *cobra.Command {
	var products []string
	var customers []string
	var salesOrders []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load catalog data and index product embeddings",
		Long: `Load Cosmic Works catalog data (products, customers, sales orders) from
local JSON files or HTTP URLs into the record store, and index product
embeddings into the Qdrant vector collection.

Products are persisted first and then embedded in paced batches, so an
embedding failure never leaves the catalog missing records. Customers and
sales orders carry no embeddings and are persisted directly.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: product_v)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)
  COSMO_CATALOG_DB     Catalog SQLite path (default: ~/.cosmo/catalog.db)

Examples:
  cosmo ingest --products ./data/products.json
  cosmo ingest --products https://example.com/cosmicworks/products.json \
               --customers ./data/customers.json \
               --sales-orders ./data/salesOrders.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if len(products)+len(customers)+len(salesOrders) == 0 {
				return fmt.Errorf("ingest: at least one of --products, --customers, or --sales-orders is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))

			index, err := openVectorIndex(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = index.Close() }()
			log.Info("qdrant index ready",
				slog.String("host", getEnvOrDefault("QDRANT_HOST", "localhost")),
				slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "product_v")),
			)

			catalogStore, err := openCatalog()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = catalogStore.Close() }()

			pipeline, err := ingestion.NewPipeline(emb, index, catalogStore, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var sources []ingestion.Source
			for _, loc := range products {
				sources = append(sources, ingestion.Source{Location: loc, Kind: ingestion.KindProducts})
			}
			for _, loc := range customers {
				sources = append(sources, ingestion.Source{Location: loc, Kind: ingestion.KindCustomers})
			}
			for _, loc := range salesOrders {
				sources = append(sources, ingestion.Source{Location: loc, Kind: ingestion.KindSalesOrders})
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			if err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(sources)))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&products, "products", nil, "Products JSON file or URL to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&customers, "customers", nil, "Customers JSON file or URL to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&salesOrders, "sales-orders", nil, "Sales orders JSON file or URL to ingest (repeatable)")

	return cmd
}
