package jsonfile

import (
	"context"
	"path/filepath"
	"testing"

	"tokopos/internal/domain"
)

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokopos.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID: 100, Name: "Marker", Category: "stationery", PriceCents: 125, Stock: 12,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.ApplyAdjustment(ctx, domain.StockAdjustment{
		ProductID: 100, Delta: 5, CostCents: 80, Source: domain.AdjustmentSourceRestock,
	}); err != nil {
		t.Fatalf("apply adjustment: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{
		Username: "budi", Password: "$2a$10$fakehashfakehashfakehash", Role: domain.RoleSalesman,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	product, err := reopened.GetProductByID(ctx, 100)
	if err != nil {
		t.Fatalf("get product after reopen: %v", err)
	}
	if product.Stock != 17 {
		t.Fatalf("expected stock 17 after restock, got %d", product.Stock)
	}

	user, err := reopened.GetUser(ctx, "budi")
	if err != nil {
		t.Fatalf("get user after reopen: %v", err)
	}
	if user.Role != domain.RoleSalesman {
		t.Fatalf("expected salesman role, got %s", user.Role)
	}
}

func TestOpenMissingFileStartsSeeded(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin123")
	t.Setenv("SEED_SALESMAN_PASSWORD", "salesman123")

	path := filepath.Join(t.TempDir(), "missing.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	products, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seed products for a fresh data file")
	}
}
