package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/cosmicworks/cosmo/internal/models"
)

// openTestStore opens an in-memory catalog for use in tests.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory catalog: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testProduct(id, sku string) models.Product {
	return models.Product{
		ID:            id,
		CategoryID:    "cat-1",
		CategoryName:  "Bikes, Road Bikes",
		SKU:           sku,
		Name:          "Road-150 " + sku,
		Description:   "A carbon road bike.",
		Price:         3578.27,
		Tags:          []models.Tag{{ID: "t1", Name: "Road"}},
		ContentVector: []float32{0.1, 0.2},
	}
}

func Test_Catalog_ProductRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	want := testProduct("p1", "BK-R150")
	if err := s.UpsertProduct(ctx, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ProductByID(ctx, "p1")
	if err != nil {
		t.Fatalf("productByID: %v", err)
	}
	if got.SKU != "BK-R150" || got.Name != want.Name || len(got.ContentVector) != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func Test_Catalog_ProductByID_NotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.ProductByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func Test_Catalog_ProductByField_SKU(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertProduct(ctx, testProduct("p1", "SE-R995")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ProductByField(ctx, "sku", "SE-R995")
	if err != nil {
		t.Fatalf("productByField: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("want p1, got %q", got.ID)
	}
}

func Test_Catalog_ProductByField_TopOneSemantics(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	// Two products with the same SKU: the lookup tolerates non-uniqueness
	// and returns exactly one of them.
	if err := s.UpsertProduct(ctx, testProduct("p1", "DUP-1")); err != nil {
		t.Fatalf("upsert p1: %v", err)
	}
	if err := s.UpsertProduct(ctx, testProduct("p2", "DUP-1")); err != nil {
		t.Fatalf("upsert p2: %v", err)
	}

	got, err := s.ProductByField(ctx, "sku", "DUP-1")
	if err != nil {
		t.Fatalf("productByField: %v", err)
	}
	if got.ID != "p1" && got.ID != "p2" {
		t.Errorf("want one of the duplicates, got %q", got.ID)
	}
}

func Test_Catalog_ProductByField_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.ProductByField(context.Background(), "price; DROP TABLE products", "1")
	if err == nil {
		t.Fatal("want error for non-whitelisted field, got nil")
	}
}

func Test_Catalog_ProductByField_NoMatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.ProductByField(context.Background(), "sku", "NOPE")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func Test_Catalog_UpsertProduct_RejectsInvalid(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.UpsertProduct(context.Background(), models.Product{SKU: "X"})
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError for product without id, got %v", err)
	}
}

func Test_Catalog_CustomerRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	c := models.Customer{
		ID:         "c1",
		CustomerID: "c1",
		FirstName:  "Ada",
		LastName:   "Rivera",
	}
	if err := s.UpsertCustomer(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.CustomerByID(ctx, "c1")
	if err != nil {
		t.Fatalf("customerByID: %v", err)
	}
	if got.FirstName != "Ada" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := s.CustomerByID(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound for absent customer, got %v", err)
	}
}

func Test_Catalog_SalesOrderRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	so := models.SalesOrder{
		ID:         "s1",
		CustomerID: "c1",
		Details: []models.SalesOrderDetail{
			{SKU: "BK-R150", Name: "Road-150", Price: 3578.27, Quantity: 1},
		},
	}
	if err := s.UpsertSalesOrder(ctx, so); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.SalesOrderByID(ctx, "s1")
	if err != nil {
		t.Fatalf("salesOrderByID: %v", err)
	}
	if len(got.Details) != 1 || got.Details[0].SKU != "BK-R150" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func Test_Catalog_CountProducts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		if err := s.UpsertProduct(ctx, testProduct(id, "SKU-"+id)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	n, err := s.CountProducts(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("want 3 products, got %d", n)
	}
}
