package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/tool"

	"github.com/cosmicworks/cosmo/internal/catalog"
	"github.com/cosmicworks/cosmo/internal/embedder"
	"github.com/cosmicworks/cosmo/internal/rag"
	"github.com/cosmicworks/cosmo/internal/session"
	"github.com/cosmicworks/cosmo/internal/tools"
)

// buildTools constructs the full list of Eino-compatible lookup and search
// tools to register with the agent. The retriever may be nil, in which case
// the vector search tool is omitted and the agent answers from exact lookups
// only.
func buildTools(store tools.Catalog, retriever rag.Retriever) []tool.BaseTool {
	toolList := []tool.BaseTool{
		tools.NewProductByIDTool(store),
		tools.NewProductBySKUTool(store),
		tools.NewSalesOrderByIDTool(store),
		tools.NewCustomerByIDTool(store),
	}

	if retriever != nil {
		toolList = append(toolList, tools.NewVectorSearchTool(retriever))
	}

	return toolList
}

// openSessionStore opens the SQLite session store. COSMO_SESSION_DB overrides
// the default path (~/.cosmo/sessions.db).
func openSessionStore() (*session.SQLiteStore, error) {
	path := os.Getenv("COSMO_SESSION_DB")
	if path == "" {
		var err error
		path, err = session.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("sessions: could not resolve default DB path: %w", err)
		}
	}
	store, err := session.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sessions: failed to open store at %s: %w", path, err)
	}
	return store, nil
}

// openCatalog opens the SQLite catalog store. COSMO_CATALOG_DB overrides the
// default path (~/.cosmo/catalog.db).
func openCatalog() (*catalog.Store, error) {
	path := os.Getenv("COSMO_CATALOG_DB")
	if path == "" {
		var err error
		path, err = catalog.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("catalog: could not resolve default DB path: %w", err)
		}
	}
	store, err := catalog.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open store at %s: %w", path, err)
	}
	return store, nil
}

// openVectorIndex connects to Qdrant using the QDRANT_* environment surface
// and ensures the product embedding collection exists.
func openVectorIndex(ctx context.Context) (*rag.QdrantIndex, error) {
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	index, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "product_v"),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return index, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
