package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/cosmicworks/cosmo/internal/catalog"
	"github.com/cosmicworks/cosmo/internal/models"
)

// idInput is the JSON-serialisable input schema shared by the by-id tools.
type idInput struct {
	// ID is the record identity to fetch.
	ID string `json:"id"`
}

// skuInput is the JSON-serialisable input schema for the by-sku tool.
type skuInput struct {
	// SKU is the stock keeping unit code to fetch.
	SKU string `json:"sku"`
}

// idParams is the Eino parameter schema shared by the by-id tools.
func idParams(desc string) *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"id": {
			Type:     schema.String,
			Desc:     desc,
			Required: true,
		},
	})
}

// ProductByIDTool is an Eino tool that fetches a single product by its id.
type ProductByIDTool struct {
	// store is the catalog the lookup runs against.
	store Catalog
}

// NewProductByIDTool constructs a ProductByIDTool over the given catalog.
func NewProductByIDTool(store Catalog) *ProductByIDTool {
	return &ProductByIDTool{store: store}
}

// Name returns the tool name registered with the agent.
func (t *ProductByIDTool) Name() string { return "get_product_by_id" }

// Description returns the LLM-facing description of this tool.
func (t *ProductByIDTool) Description() string {
	return "Retrieves a single Cosmic Works product by its exact id. " +
		"Returns the product information in JSON format, or a not_found payload when no product has that id."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ProductByIDTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name(),
		Desc:        t.Description(),
		ParamsOneOf: idParams("The exact product id to look up."),
	}, nil
}

// InvokableRun executes the lookup given a JSON-encoded input string.
func (t *ProductByIDTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input idInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_product_by_id: invalid input: %w", err)
	}
	if input.ID == "" {
		return "", fmt.Errorf("get_product_by_id: id is required")
	}

	product, err := t.store.ProductByID(ctx, input.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundJSON("products", "id", input.ID), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_product_by_id: %w", err)
	}

	return recordJSON(product.WithoutVector())
}

// ProductBySKUTool is an Eino tool that fetches a single product by its SKU.
// SKUs are not guaranteed unique; when several products share one, a single
// implementation-chosen product is returned.
type ProductBySKUTool struct {
	// store is the catalog the lookup runs against.
	store Catalog
}

// NewProductBySKUTool constructs a ProductBySKUTool over the given catalog.
func NewProductBySKUTool(store Catalog) *ProductBySKUTool {
	return &ProductBySKUTool{store: store}
}

// Name returns the tool name registered with the agent.
func (t *ProductBySKUTool) Name() string { return "get_product_by_sku" }

// Description returns the LLM-facing description of this tool.
func (t *ProductBySKUTool) Description() string {
	return "Retrieves a single Cosmic Works product by its exact SKU code (e.g. 'BK-R50R-44'). " +
		"Returns the product information in JSON format, or a not_found payload when no product has that SKU."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ProductBySKUTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"sku": {
				Type:     schema.String,
				Desc:     "The exact SKU code to look up.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the lookup given a JSON-encoded input string.
func (t *ProductBySKUTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input skuInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_product_by_sku: invalid input: %w", err)
	}
	if input.SKU == "" {
		return "", fmt.Errorf("get_product_by_sku: sku is required")
	}

	product, err := t.store.ProductByField(ctx, "sku", input.SKU)
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundJSON("products", "sku", input.SKU), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_product_by_sku: %w", err)
	}

	return recordJSON(product.WithoutVector())
}

// SalesOrderByIDTool is an Eino tool that fetches a single sales order by id.
type SalesOrderByIDTool struct {
	// store is the catalog the lookup runs against.
	store Catalog
}

// NewSalesOrderByIDTool constructs a SalesOrderByIDTool over the given catalog.
func NewSalesOrderByIDTool(store Catalog) *SalesOrderByIDTool {
	return &SalesOrderByIDTool{store: store}
}

// Name returns the tool name registered with the agent.
func (t *SalesOrderByIDTool) Name() string { return "get_sales_order_by_id" }

// Description returns the LLM-facing description of this tool.
func (t *SalesOrderByIDTool) Description() string {
	return "Retrieves a single Cosmic Works sales order by its exact id, including its line items. " +
		"Returns the order in JSON format, or a not_found payload when no order has that id."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SalesOrderByIDTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name(),
		Desc:        t.Description(),
		ParamsOneOf: idParams("The exact sales order id to look up."),
	}, nil
}

// InvokableRun executes the lookup given a JSON-encoded input string.
func (t *SalesOrderByIDTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input idInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_sales_order_by_id: invalid input: %w", err)
	}
	if input.ID == "" {
		return "", fmt.Errorf("get_sales_order_by_id: id is required")
	}

	order, err := t.store.SalesOrderByID(ctx, input.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundJSON("salesOrders", "id", input.ID), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_sales_order_by_id: %w", err)
	}

	return recordJSON(order)
}

// CustomerByIDTool is an Eino tool that fetches a single customer by id.
// The stored password hash is redacted before the record reaches the LLM.
type CustomerByIDTool struct {
	// store is the catalog the lookup runs against.
	store Catalog
}

// NewCustomerByIDTool constructs a CustomerByIDTool over the given catalog.
func NewCustomerByIDTool(store Catalog) *CustomerByIDTool {
	return &CustomerByIDTool{store: store}
}

// Name returns the tool name registered with the agent.
func (t *CustomerByIDTool) Name() string { return "get_customer_by_id" }

// Description returns the LLM-facing description of this tool.
func (t *CustomerByIDTool) Description() string {
	return "Retrieves a single Cosmic Works customer by their exact id. " +
		"Returns the customer record in JSON format, or a not_found payload when no customer has that id."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CustomerByIDTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name(),
		Desc:        t.Description(),
		ParamsOneOf: idParams("The exact customer id to look up."),
	}, nil
}

// InvokableRun executes the lookup given a JSON-encoded input string.
func (t *CustomerByIDTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input idInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("get_customer_by_id: invalid input: %w", err)
	}
	if input.ID == "" {
		return "", fmt.Errorf("get_customer_by_id: id is required")
	}

	customer, err := t.store.CustomerByID(ctx, input.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return notFoundJSON("customers", "id", input.ID), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_customer_by_id: %w", err)
	}

	// Credential material never goes to the model.
	customer.Password = models.Password{}

	return recordJSON(customer)
}
