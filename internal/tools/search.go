package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/cosmicworks/cosmo/internal/rag"
)

// searchInput is the JSON-serialisable input schema for the search tool.
type searchInput struct {
	// Query is the natural-language search text.
	Query string `json:"query"`
	// TopK bounds the number of results. Zero means the retriever default.
	TopK int `json:"top_k,omitempty"`
}

// VectorSearchTool is an Eino tool that performs semantic product search
// through the retrieval pipeline. Results carry a similarity score and never
// include embedding vectors.
type VectorSearchTool struct {
	retriever rag.Retriever
}

// NewVectorSearchTool constructs a VectorSearchTool over the given retriever.
func NewVectorSearchTool(retriever rag.Retriever) *VectorSearchTool {
	return &VectorSearchTool{retriever: retriever}
}

// Name returns the tool name registered with the agent.
func (t *VectorSearchTool) Name() string { return "vector_search_products" }

// Description returns the LLM-facing description of this tool.
func (t *VectorSearchTool) Description() string {
	return "Searches the Cosmic Works product catalog by meaning rather than exact keywords. " +
		"Use this for open-ended questions like 'a lightweight bike for long road rides'. " +
		"Returns a JSON list of products ordered from most to least similar, each with a similarity_score."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *VectorSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The natural-language description of the products to find.",
				Required: true,
			},
			"top_k": {
				Type: schema.Integer,
				Desc: "Maximum number of products to return. Omit to use the default.",
			},
		}),
	}, nil
}

// InvokableRun executes the search given a JSON-encoded input string.
func (t *VectorSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("vector_search_products: invalid input: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("vector_search_products: query is required")
	}

	results, err := t.retriever.Retrieve(ctx, input.Query, input.TopK)
	if err != nil {
		return "", fmt.Errorf("vector_search_products: %w", err)
	}

	return recordJSON(results)
}
