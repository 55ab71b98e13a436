// Package tools defines the lookup and search tools the Cosmo agent can
// invoke during a conversation: exact-match record fetches against the
// catalog and the vector similarity search over the product collection.
// Each tool satisfies both this package's interface and Eino's tool.BaseTool
// interface so they can be registered directly with the agent.
package tools

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/components/tool"

	"github.com/cosmicworks/cosmo/internal/models"
)

// CosmoTool is the interface that all catalog-aware tools must satisfy.
// It extends the Eino invokable tool contract with Name and Description
// accessors so the agent can log and route tool calls by name without type
// assertions.
type CosmoTool interface {
	tool.InvokableTool

	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// Catalog is the record store surface the lookup tools depend on.
// *catalog.Store satisfies it; tests inject a fake.
type Catalog interface {
	// ProductByID fetches a product by its identity.
	ProductByID(ctx context.Context, id string) (models.Product, error)
	// ProductByField fetches at most one product by an exact field match.
	ProductByField(ctx context.Context, field, value string) (models.Product, error)
	// CustomerByID fetches a customer by its identity.
	CustomerByID(ctx context.Context, id string) (models.Customer, error)
	// SalesOrderByID fetches a sales order by its identity.
	SalesOrderByID(ctx context.Context, id string) (models.SalesOrder, error)
}

// notFoundPayload is the structured result a lookup tool returns when no
// record matches. It goes back to the LLM as tool output — not as a Go
// error — so the agent can narrate a natural "not found" answer instead of
// failing the turn.
type notFoundPayload struct {
	// Error is always "not_found".
	Error string `json:"error"`
	// Collection names the collection that was searched.
	Collection string `json:"collection"`
	// Field is the attribute that was matched against.
	Field string `json:"field"`
	// Value is the value that matched nothing.
	Value string `json:"value"`
}

// notFoundJSON renders the structured not-found payload for a failed lookup.
func notFoundJSON(collection, field, value string) string {
	out, _ := json.Marshal(notFoundPayload{
		Error:      "not_found",
		Collection: collection,
		Field:      field,
		Value:      value,
	})
	return string(out)
}

// recordJSON serializes a record for the LLM. Indented so the model reads
// field structure reliably.
func recordJSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
