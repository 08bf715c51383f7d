package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	lowStockThreshold int
	expiryWarningDays int
}

func New(repo store.Repository, lowStockThreshold int, expiryWarningDays int) *Service {
	if lowStockThreshold < 1 {
		lowStockThreshold = 5
	}
	if expiryWarningDays < 1 {
		expiryWarningDays = 30
	}

	return &Service{
		repo:              repo,
		lowStockThreshold: lowStockThreshold,
		expiryWarningDays: expiryWarningDays,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, fmt.Errorf("authentication required")
	}
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.ID < 1 || req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.PriceCents < 1 || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	var expiryDate *time.Time
	if strings.TrimSpace(req.ExpiryDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid expiry date, want YYYY-MM-DD: %w", err)
		}
		parsed = parsed.UTC()
		expiryDate = &parsed
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:         req.ID,
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		ExpiryDate: expiryDate,
	})
	if err != nil {
		return domain.Product{}, err
	}

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	if id < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Stock = *req.Stock
	}
	if req.ExpiryDate != nil {
		if strings.TrimSpace(*req.ExpiryDate) == "" {
			updated.ExpiryDate = nil
		} else {
			parsed, err := time.Parse("2006-01-02", *req.ExpiryDate)
			if err != nil {
				return domain.Product{}, fmt.Errorf("invalid expiry date, want YYYY-MM-DD: %w", err)
			}
			parsed = parsed.UTC()
			updated.ExpiryDate = &parsed
		}
	}

	result, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *result, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, fmt.Errorf("authentication required")
	}
	return s.repo.SearchProducts(ctx, query)
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, fmt.Errorf("authentication required")
	}
	return s.repo.ListLowStock(ctx, s.lowStockThreshold)
}

func (s *Service) ExpiringProducts(ctx context.Context) ([]domain.Product, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, fmt.Errorf("authentication required")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, s.expiryWarningDays)
	return s.repo.ListExpiring(ctx, cutoff)
}

// AdjustStock applies a manual delta to a product and records it on the
// ledger. Positive deltas are restocks, carrying the unit cost paid.
func (s *Service) AdjustStock(ctx context.Context, productID int64, delta int, costCents int64) (domain.AdjustStockResult, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.AdjustStockResult{}, fmt.Errorf("authentication required")
	}
	if productID < 1 || delta == 0 || costCents < 0 {
		return domain.AdjustStockResult{}, store.ErrInvalidInput
	}

	source := domain.AdjustmentSourceManual
	if delta > 0 {
		source = domain.AdjustmentSourceRestock
	} else {
		costCents = 0
	}

	product, err := s.repo.ApplyAdjustment(ctx, domain.StockAdjustment{
		ID:        xid.New("adj"),
		ProductID: productID,
		Delta:     delta,
		CostCents: costCents,
		Source:    source,
		At:        time.Now().UTC(),
	})
	if err != nil {
		return domain.AdjustStockResult{}, err
	}

	return domain.AdjustStockResult{
		Product:  *product,
		LowStock: product.Stock <= s.lowStockThreshold,
	}, nil
}

// CreateBill validates and prices every line, then hands the whole sale to
// the repository in one shot: either all lines commit or none do.
func (s *Service) CreateBill(ctx context.Context, req domain.BillRequest) (domain.BillResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleSalesman {
		return domain.BillResponse{}, fmt.Errorf("salesman role required")
	}

	if len(req.Lines) == 0 {
		return domain.BillResponse{}, store.ErrInvalidInput
	}

	totalCents := int64(0)
	saleLines := make([]domain.SaleLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.ProductID < 1 || line.Qty < 1 {
			return domain.BillResponse{}, store.ErrInvalidInput
		}
		product, err := s.repo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return domain.BillResponse{}, err
		}
		lineTotal := product.PriceCents * int64(line.Qty)
		totalCents += lineTotal
		saleLines = append(saleLines, domain.SaleLine{
			ProductID:      product.ID,
			Name:           product.Name,
			Qty:            line.Qty,
			UnitPriceCents: product.PriceCents,
			TotalCents:     lineTotal,
		})
	}

	if req.PaymentCents < totalCents {
		return domain.BillResponse{}, fmt.Errorf("%w: payment %d is less than total %d", store.ErrInvalidInput, req.PaymentCents, totalCents)
	}

	sale := domain.Sale{
		ID:           xid.New("sale"),
		Cashier:      actor.Username,
		Lines:        saleLines,
		TotalCents:   totalCents,
		PaymentCents: req.PaymentCents,
		ChangeCents:  req.PaymentCents - totalCents,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.BillResponse{}, err
	}

	return domain.BillResponse{
		Sale:    *created,
		Receipt: buildReceipt(*created),
	}, nil
}

func buildReceipt(sale domain.Sale) string {
	lines := []string{
		"TokoPOS",
		"========================",
		"Bill: " + sale.ID,
		"Cashier: " + sale.Cashier,
		"Date: " + sale.CreatedAt.Format("2006-01-02 15:04:05"),
		"------------------------",
	}
	for _, line := range sale.Lines {
		lines = append(lines, fmt.Sprintf("%s  %d x %s = %s",
			line.Name, line.Qty, formatCents(line.UnitPriceCents), formatCents(line.TotalCents)))
	}
	lines = append(lines,
		"------------------------",
		"Total  : "+formatCents(sale.TotalCents),
		"Paid   : "+formatCents(sale.PaymentCents),
		"Change : "+formatCents(sale.ChangeCents),
		"========================",
		"Thank you",
		"",
	)
	return strings.Join(lines, "\n")
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (s *Service) DailySalesReport(ctx context.Context, date string) (domain.DailySalesReport, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.DailySalesReport{}, fmt.Errorf("authentication required")
	}

	from, to, err := dayWindow(date)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return domain.DailySalesReport{}, err
	}

	report := domain.DailySalesReport{
		Date:         from.Format("2006-01-02"),
		Transactions: sales,
	}
	for _, sale := range sales {
		report.TotalSalesCents += sale.TotalCents
		report.TransactionCount++
		for _, line := range sale.Lines {
			report.ItemsSold += line.Qty
		}
	}
	return report, nil
}

func (s *Service) MonthlySalesReport(ctx context.Context, year int, month int) (domain.MonthlySalesReport, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.MonthlySalesReport{}, fmt.Errorf("authentication required")
	}
	if year < 1 || month < 1 || month > 12 {
		return domain.MonthlySalesReport{}, store.ErrInvalidInput
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return domain.MonthlySalesReport{}, err
	}

	report := domain.MonthlySalesReport{
		Year:        year,
		Month:       month,
		DailyTotals: make([]domain.DailyTotal, 0, 31),
	}
	totalsByDate := make(map[string]int64)
	for _, sale := range sales {
		report.TotalSalesCents += sale.TotalCents
		report.TransactionCount++
		totalsByDate[sale.CreatedAt.UTC().Format("2006-01-02")] += sale.TotalCents
	}
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if total, ok := totalsByDate[key]; ok {
			report.DailyTotals = append(report.DailyTotals, domain.DailyTotal{Date: key, TotalCents: total})
		}
	}
	return report, nil
}

// DailyPurchaseReport lists the restock ledger entries for one day, one
// line per restock, with the product name resolved where it still exists.
func (s *Service) DailyPurchaseReport(ctx context.Context, date string) (domain.DailyPurchaseReport, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.DailyPurchaseReport{}, fmt.Errorf("authentication required")
	}

	from, to, err := dayWindow(date)
	if err != nil {
		return domain.DailyPurchaseReport{}, err
	}

	adjustments, err := s.repo.ListAdjustments(ctx, from, to)
	if err != nil {
		return domain.DailyPurchaseReport{}, err
	}

	report := domain.DailyPurchaseReport{
		Date:  from.Format("2006-01-02"),
		Lines: make([]domain.PurchaseReportLine, 0, len(adjustments)),
	}
	names := make(map[int64]string)
	for _, adj := range adjustments {
		if adj.Source != domain.AdjustmentSourceRestock || adj.Delta < 1 {
			continue
		}
		name, ok := names[adj.ProductID]
		if !ok {
			if product, err := s.repo.GetProductByID(ctx, adj.ProductID); err == nil {
				name = product.Name
			}
			names[adj.ProductID] = name
		}
		report.Lines = append(report.Lines, domain.PurchaseReportLine{
			ProductID:      adj.ProductID,
			ProductName:    name,
			QtyRestocked:   adj.Delta,
			UnitCostCents:  adj.CostCents,
			TotalCostCents: adj.CostCents * int64(adj.Delta),
		})
	}
	return report, nil
}

func dayWindow(date string) (time.Time, time.Time, error) {
	date = strings.TrimSpace(date)
	var day time.Time
	if date == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid date, want YYYY-MM-DD: %w", err)
		}
		day = parsed.UTC()
	}
	return day, day.AddDate(0, 0, 1), nil
}
