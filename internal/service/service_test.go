package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	return New(repo, 5, 30), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func salesmanCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "dewi", Role: domain.RoleSalesman})
}

func mustCreateProduct(t *testing.T, svc *Service, req domain.ProductCreateRequest) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), req)
	if err != nil {
		t.Fatalf("create product %d: %v", req.ID, err)
	}
	return product
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10}

	if _, err := svc.CreateProduct(salesmanCtx(), req); err == nil {
		t.Fatalf("expected salesman to be rejected")
	}
	if _, err := svc.CreateProduct(context.Background(), req); err == nil {
		t.Fatalf("expected anonymous caller to be rejected")
	}

	if _, err := svc.CreateProduct(adminCtx(), req); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := svc.CreateProduct(adminCtx(), req); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", err)
	}
}

func TestUpdateProductPartialFields(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	newPrice := int64(250)
	updated, err := svc.UpdateProduct(adminCtx(), 1, domain.ProductUpdateRequest{PriceCents: &newPrice})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.PriceCents != 250 {
		t.Fatalf("expected price 250, got %d", updated.PriceCents)
	}
	if updated.Name != "Pen" || updated.Stock != 10 {
		t.Fatalf("expected untouched fields preserved, got %+v", updated)
	}

	if _, err := svc.UpdateProduct(adminCtx(), 99, domain.ProductUpdateRequest{PriceCents: &newPrice}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	if err := svc.DeleteProduct(salesmanCtx(), 1); err == nil {
		t.Fatalf("expected salesman delete rejected")
	}
	if err := svc.DeleteProduct(adminCtx(), 1); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if err := svc.DeleteProduct(adminCtx(), 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSearchProductsMatchesNameAndCategory(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 2, Name: "Stapler", Category: "office", PriceCents: 4200, Stock: 8})

	results, err := svc.SearchProducts(salesmanCtx(), "PEN")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("expected case-insensitive name match on Pen, got %+v", results)
	}

	results, err = svc.SearchProducts(salesmanCtx(), "office")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 2 {
		t.Fatalf("expected category match on Stapler, got %+v", results)
	}
}

func TestAdjustStockRestockAndOverdraw(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	result, err := svc.AdjustStock(salesmanCtx(), 1, 5, 120)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if result.Product.Stock != 15 {
		t.Fatalf("expected stock 15 after restock, got %d", result.Product.Stock)
	}
	if result.LowStock {
		t.Fatalf("did not expect low stock flag at 15")
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	before, err := repo.ListAdjustments(context.Background(), from, to)
	if err != nil {
		t.Fatalf("list adjustments: %v", err)
	}

	if _, err := svc.AdjustStock(salesmanCtx(), 1, -100, 0); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err := repo.GetProductByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 15 {
		t.Fatalf("expected stock unchanged at 15 after failed overdraw, got %d", product.Stock)
	}

	after, err := repo.ListAdjustments(context.Background(), from, to)
	if err != nil {
		t.Fatalf("list adjustments: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected ledger unchanged after failed adjustment, got %d -> %d entries", len(before), len(after))
	}
}

func TestAdjustStockFlagsLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	result, err := svc.AdjustStock(salesmanCtx(), 1, -6, 0)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if result.Product.Stock != 4 {
		t.Fatalf("expected stock 4, got %d", result.Product.Stock)
	}
	if !result.LowStock {
		t.Fatalf("expected low stock flag at 4 with threshold 5")
	}

	low, err := svc.LowStockProducts(salesmanCtx())
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].ID != 1 {
		t.Fatalf("expected product 1 in low stock list, got %+v", low)
	}
}

func TestCreateBillDecrementsStockAndMakesChange(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	resp, err := svc.CreateBill(salesmanCtx(), domain.BillRequest{
		Lines:        []domain.BillLine{{ProductID: 1, Qty: 3}},
		PaymentCents: 1000,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if resp.Sale.TotalCents != 600 {
		t.Fatalf("expected total 600, got %d", resp.Sale.TotalCents)
	}
	if resp.Sale.ChangeCents != 400 {
		t.Fatalf("expected change 400, got %d", resp.Sale.ChangeCents)
	}
	if resp.Sale.Cashier != "dewi" {
		t.Fatalf("expected cashier dewi, got %s", resp.Sale.Cashier)
	}

	product, err := repo.GetProductByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", product.Stock)
	}

	// Each line shows name, quantity, unit price and line total; the
	// totals block is formatted money, not raw cents.
	for _, want := range []string{"Pen  3 x 2.00 = 6.00", "Total  : 6.00", "Paid   : 10.00", "Change : 4.00"} {
		if !strings.Contains(resp.Receipt, want) {
			t.Fatalf("expected receipt to contain %q, got:\n%s", want, resp.Receipt)
		}
	}
}

func TestCreateBillAllOrNothing(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 7})
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 2, Name: "Eraser", Category: "stationery", PriceCents: 100, Stock: 5})

	_, err := svc.CreateBill(salesmanCtx(), domain.BillRequest{
		Lines: []domain.BillLine{
			{ProductID: 2, Qty: 2},
			{ProductID: 1, Qty: 20},
		},
		PaymentCents: 10000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	for id, want := range map[int64]int{1: 7, 2: 5} {
		product, err := repo.GetProductByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get product %d: %v", id, err)
		}
		if product.Stock != want {
			t.Fatalf("expected product %d stock unchanged at %d, got %d", id, want, product.Stock)
		}
	}
}

func TestCreateBillRejectsUnderpayment(t *testing.T) {
	svc, repo := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	_, err := svc.CreateBill(salesmanCtx(), domain.BillRequest{
		Lines:        []domain.BillLine{{ProductID: 1, Qty: 3}},
		PaymentCents: 500,
	})
	if err == nil {
		t.Fatalf("expected underpayment rejected")
	}

	product, err := repo.GetProductByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 10 {
		t.Fatalf("expected stock unchanged at 10, got %d", product.Stock)
	}
}

func TestCreateBillRequiresSalesman(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	req := domain.BillRequest{
		Lines:        []domain.BillLine{{ProductID: 1, Qty: 1}},
		PaymentCents: 200,
	}
	if _, err := svc.CreateBill(adminCtx(), req); err == nil {
		t.Fatalf("expected admin bill rejected")
	}
	if _, err := svc.CreateBill(context.Background(), req); err == nil {
		t.Fatalf("expected anonymous bill rejected")
	}
}

func TestDailySalesReportEmptyDay(t *testing.T) {
	svc, _ := newTestService(t)

	report, err := svc.DailySalesReport(salesmanCtx(), "2026-08-01")
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if report.TotalSalesCents != 0 || report.TransactionCount != 0 || report.ItemsSold != 0 {
		t.Fatalf("expected zero report for empty day, got %+v", report)
	}
	if len(report.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(report.Transactions))
	}
}

func TestDailyAndMonthlySalesReports(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 100})

	for _, qty := range []int{3, 2} {
		if _, err := svc.CreateBill(salesmanCtx(), domain.BillRequest{
			Lines:        []domain.BillLine{{ProductID: 1, Qty: qty}},
			PaymentCents: 10000,
		}); err != nil {
			t.Fatalf("create bill qty %d: %v", qty, err)
		}
	}

	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	daily, err := svc.DailySalesReport(salesmanCtx(), today)
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if daily.TotalSalesCents != 1000 {
		t.Fatalf("expected daily total 1000, got %d", daily.TotalSalesCents)
	}
	if daily.TransactionCount != 2 || daily.ItemsSold != 5 {
		t.Fatalf("expected 2 transactions and 5 items, got %+v", daily)
	}

	monthly, err := svc.MonthlySalesReport(salesmanCtx(), now.Year(), int(now.Month()))
	if err != nil {
		t.Fatalf("monthly report: %v", err)
	}
	if monthly.TotalSalesCents != 1000 || monthly.TransactionCount != 2 {
		t.Fatalf("expected monthly totals to match daily, got %+v", monthly)
	}

	sumOfDays := int64(0)
	for _, day := range monthly.DailyTotals {
		sumOfDays += day.TotalCents
	}
	if sumOfDays != monthly.TotalSalesCents {
		t.Fatalf("expected daily totals %d to sum to monthly total %d", sumOfDays, monthly.TotalSalesCents)
	}
}

func TestDailyPurchaseReportListsRestocksOnly(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10})

	if _, err := svc.AdjustStock(salesmanCtx(), 1, 5, 120); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if _, err := svc.CreateBill(salesmanCtx(), domain.BillRequest{
		Lines:        []domain.BillLine{{ProductID: 1, Qty: 2}},
		PaymentCents: 400,
	}); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	report, err := svc.DailyPurchaseReport(salesmanCtx(), time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("purchase report: %v", err)
	}
	if len(report.Lines) != 1 {
		t.Fatalf("expected 1 restock line, got %+v", report.Lines)
	}
	line := report.Lines[0]
	if line.ProductID != 1 || line.ProductName != "Pen" {
		t.Fatalf("unexpected line %+v", line)
	}
	if line.QtyRestocked != 5 || line.UnitCostCents != 120 || line.TotalCostCents != 600 {
		t.Fatalf("expected 5 units at 120 totalling 600, got %+v", line)
	}
}

func TestExpiringProducts(t *testing.T) {
	svc, _ := newTestService(t)

	soon := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")
	far := time.Now().UTC().AddDate(0, 0, 90).Format("2006-01-02")
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 1, Name: "Glue", Category: "stationery", PriceCents: 300, Stock: 10, ExpiryDate: soon})
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 2, Name: "Ink", Category: "stationery", PriceCents: 900, Stock: 10, ExpiryDate: far})
	mustCreateProduct(t, svc, domain.ProductCreateRequest{ID: 3, Name: "Ruler", Category: "stationery", PriceCents: 150, Stock: 10})

	expiring, err := svc.ExpiringProducts(salesmanCtx())
	if err != nil {
		t.Fatalf("expiring: %v", err)
	}
	if len(expiring) != 1 || expiring[0].ID != 1 {
		t.Fatalf("expected only product 1 expiring within 30 days, got %+v", expiring)
	}
}
