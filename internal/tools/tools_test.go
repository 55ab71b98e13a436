package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cosmicworks/cosmo/internal/catalog"
	"github.com/cosmicworks/cosmo/internal/models"
	"github.com/cosmicworks/cosmo/internal/rag"
)

// fakeCatalog serves canned records keyed by id (or by sku for products).
type fakeCatalog struct {
	products    map[string]models.Product
	customers   map[string]models.Customer
	salesOrders map[string]models.SalesOrder
}

func (f *fakeCatalog) ProductByID(ctx context.Context, id string) (models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return models.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) ProductByField(ctx context.Context, field, value string) (models.Product, error) {
	if field != "sku" {
		return models.Product{}, errors.New("unexpected field: " + field)
	}
	for _, p := range f.products {
		if p.SKU == value {
			return p, nil
		}
	}
	return models.Product{}, catalog.ErrNotFound
}

func (f *fakeCatalog) CustomerByID(ctx context.Context, id string) (models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return models.Customer{}, catalog.ErrNotFound
	}
	return c, nil
}

func (f *fakeCatalog) SalesOrderByID(ctx context.Context, id string) (models.SalesOrder, error) {
	so, ok := f.salesOrders[id]
	if !ok {
		return models.SalesOrder{}, catalog.ErrNotFound
	}
	return so, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string]models.Product{
			"p1": {
				ID:            "p1",
				CategoryName:  "Bikes, Road Bikes",
				SKU:           "BK-R50R-44",
				Name:          "Road-650 Red, 44",
				Description:   "Value-priced road bike.",
				Price:         782.99,
				ContentVector: []float32{0.1, 0.2},
			},
		},
		customers: map[string]models.Customer{
			"c1": {
				ID:        "c1",
				FirstName: "Nalani",
				LastName:  "Rivera",
				Password:  models.Password{Hash: "deadbeef", Salt: "abc123"},
			},
		},
		salesOrders: map[string]models.SalesOrder{
			"so1": {
				ID:         "so1",
				CustomerID: "c1",
				Details: []models.SalesOrderDetail{
					{SKU: "BK-R50R-44", Name: "Road-650 Red, 44", Price: 782.99, Quantity: 1},
				},
			},
		},
	}
}

func Test_ProductByIDTool_ReturnsProductJSON(t *testing.T) {
	t.Parallel()
	tool := NewProductByIDTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"id":"p1"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var got models.Product
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.ID != "p1" || got.SKU != "BK-R50R-44" {
		t.Errorf("unexpected product: %+v", got)
	}
	if strings.Contains(out, "contentVector") {
		t.Errorf("output leaks embedding vector: %s", out)
	}
}

func Test_ProductByIDTool_NotFoundIsPayloadNotError(t *testing.T) {
	t.Parallel()
	tool := NewProductByIDTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"id":"nope"}`)
	if err != nil {
		t.Fatalf("not-found must not be a Go error, got: %v", err)
	}

	var payload struct {
		Error      string `json:"error"`
		Collection string `json:"collection"`
		Field      string `json:"field"`
		Value      string `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Error != "not_found" || payload.Collection != "products" || payload.Value != "nope" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func Test_ProductByIDTool_RejectsEmptyID(t *testing.T) {
	t.Parallel()
	tool := NewProductByIDTool(testCatalog())

	if _, err := tool.InvokableRun(context.Background(), `{}`); err == nil {
		t.Fatal("want error for missing id")
	}
	if _, err := tool.InvokableRun(context.Background(), `not json`); err == nil {
		t.Fatal("want error for malformed input")
	}
}

func Test_ProductBySKUTool_FindsBySKU(t *testing.T) {
	t.Parallel()
	tool := NewProductBySKUTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"sku":"BK-R50R-44"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got models.Product
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("want p1, got %q", got.ID)
	}
}

func Test_ProductBySKUTool_NotFound(t *testing.T) {
	t.Parallel()
	tool := NewProductBySKUTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"sku":"XX-0000-00"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `"not_found"`) || !strings.Contains(out, `"sku"`) {
		t.Errorf("unexpected payload: %s", out)
	}
}

func Test_SalesOrderByIDTool_ReturnsOrderWithDetails(t *testing.T) {
	t.Parallel()
	tool := NewSalesOrderByIDTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"id":"so1"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got models.SalesOrder
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.ID != "so1" || len(got.Details) != 1 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func Test_CustomerByIDTool_RedactsPassword(t *testing.T) {
	t.Parallel()
	tool := NewCustomerByIDTool(testCatalog())

	out, err := tool.InvokableRun(context.Background(), `{"id":"c1"}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out, "deadbeef") || strings.Contains(out, "abc123") {
		t.Errorf("output leaks credential material: %s", out)
	}
	var got models.Customer
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.FirstName != "Nalani" {
		t.Errorf("unexpected customer: %+v", got)
	}
}

// fakeRetriever returns canned results and records the last query.
type fakeRetriever struct {
	results   []rag.Result
	err       error
	lastQuery string
	lastTopK  int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]rag.Result, error) {
	f.lastQuery = query
	f.lastTopK = topK
	return f.results, f.err
}

func Test_VectorSearchTool_ReturnsRankedResults(t *testing.T) {
	t.Parallel()
	retriever := &fakeRetriever{
		results: []rag.Result{
			{Product: models.Product{ID: "p1", Name: "Road-650 Red, 44"}, Score: 0.91},
			{Product: models.Product{ID: "p2", Name: "Mountain-100 Silver, 38"}, Score: 0.74},
		},
	}
	tool := NewVectorSearchTool(retriever)

	out, err := tool.InvokableRun(context.Background(), `{"query":"a fast road bike","top_k":2}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if retriever.lastQuery != "a fast road bike" || retriever.lastTopK != 2 {
		t.Errorf("retriever got query=%q topK=%d", retriever.lastQuery, retriever.lastTopK)
	}

	var got []rag.Result
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got) != 2 || got[0].Product.ID != "p1" || got[0].Score != 0.91 {
		t.Errorf("unexpected results: %+v", got)
	}
}

func Test_VectorSearchTool_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	tool := NewVectorSearchTool(&fakeRetriever{})

	if _, err := tool.InvokableRun(context.Background(), `{"query":""}`); err == nil {
		t.Fatal("want error for empty query")
	}
}

func Test_VectorSearchTool_PropagatesRetrieverError(t *testing.T) {
	t.Parallel()
	tool := NewVectorSearchTool(&fakeRetriever{err: errors.New("embedder down")})

	if _, err := tool.InvokableRun(context.Background(), `{"query":"anything"}`); err == nil {
		t.Fatal("want error when retrieval fails")
	}
}

func Test_ToolInfos_HaveSchemas(t *testing.T) {
	t.Parallel()
	store := testCatalog()
	for _, tl := range []CosmoTool{
		NewProductByIDTool(store),
		NewProductBySKUTool(store),
		NewSalesOrderByIDTool(store),
		NewCustomerByIDTool(store),
		NewVectorSearchTool(&fakeRetriever{}),
	} {
		info, err := tl.Info(context.Background())
		if err != nil {
			t.Fatalf("%s: info: %v", tl.Name(), err)
		}
		if info.Name != tl.Name() {
			t.Errorf("info name %q != tool name %q", info.Name, tl.Name())
		}
		if info.ParamsOneOf == nil {
			t.Errorf("%s: missing params schema", tl.Name())
		}
	}
}
