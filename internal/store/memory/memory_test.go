package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

func TestCreateSaleFoldsDuplicateLines(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.CreateProduct(ctx, domain.Product{ID: 1, Name: "Pen", PriceCents: 200, Stock: 5}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	// 3 + 3 across two lines exceeds stock 5 even though each line fits.
	_, err := s.CreateSale(ctx, domain.Sale{
		Cashier: "dewi",
		Lines: []domain.SaleLine{
			{ProductID: 1, Qty: 3, UnitPriceCents: 200, TotalCents: 600},
			{ProductID: 1, Qty: 3, UnitPriceCents: 200, TotalCents: 600},
		},
		TotalCents:   1200,
		PaymentCents: 1200,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err := s.GetProductByID(ctx, 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 5 {
		t.Fatalf("expected stock unchanged at 5, got %d", product.Stock)
	}
}

func TestCreateSaleWritesLedgerEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.CreateProduct(ctx, domain.Product{ID: 1, Name: "Pen", PriceCents: 200, Stock: 10}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{
		Cashier: "dewi",
		Lines: []domain.SaleLine{
			{ProductID: 1, Qty: 3, UnitPriceCents: 200, TotalCents: 600},
		},
		TotalCents:   600,
		PaymentCents: 600,
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	adjustments, err := s.ListAdjustments(ctx, from, to)
	if err != nil {
		t.Fatalf("list adjustments: %v", err)
	}
	if len(adjustments) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(adjustments))
	}
	if adjustments[0].Delta != -3 || adjustments[0].Source != domain.AdjustmentSourceSale {
		t.Fatalf("unexpected ledger entry %+v", adjustments[0])
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.CreateProduct(ctx, domain.Product{
		ID: 1, Name: "Glue", Category: "stationery", PriceCents: 300, Stock: 4, ExpiryDate: &expiry,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "budi", Password: "$2a$10$x", Role: domain.RoleSalesman}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	restored := NewFromSnapshot(s.Snapshot())

	product, err := restored.GetProductByID(ctx, 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.ExpiryDate == nil || !product.ExpiryDate.Equal(expiry) {
		t.Fatalf("expected expiry preserved, got %+v", product.ExpiryDate)
	}
	if _, err := restored.GetUser(ctx, "budi"); err != nil {
		t.Fatalf("expected user preserved: %v", err)
	}
}

func TestDeleteProductNotFound(t *testing.T) {
	s := New()
	if err := s.DeleteProduct(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
