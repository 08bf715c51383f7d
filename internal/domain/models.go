package domain

import "time"

type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	PriceCents int64      `json:"price_cents"`
	Stock      int        `json:"stock"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

type ProductCreateRequest struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
}

// StockAdjustment is an append-only ledger entry. Delta is positive for
// restocks and negative for sales. CostCents is the unit cost paid on a
// restock; it stays zero for sale entries.
type StockAdjustment struct {
	ID        string    `json:"id"`
	ProductID int64     `json:"product_id"`
	Delta     int       `json:"delta"`
	CostCents int64     `json:"cost_cents"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}

type SaleLine struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type Sale struct {
	ID           string     `json:"id"`
	Cashier      string     `json:"cashier"`
	Lines        []SaleLine `json:"lines"`
	TotalCents   int64      `json:"total_cents"`
	PaymentCents int64      `json:"payment_cents"`
	ChangeCents  int64      `json:"change_cents"`
	CreatedAt    time.Time  `json:"created_at"`
}

type BillLine struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type BillRequest struct {
	Lines        []BillLine `json:"lines"`
	PaymentCents int64      `json:"payment_cents"`
}

type BillResponse struct {
	Sale    Sale   `json:"sale"`
	Receipt string `json:"receipt"`
}

type AdjustStockResult struct {
	Product  Product `json:"product"`
	LowStock bool    `json:"low_stock"`
}

type DailySalesReport struct {
	Date             string `json:"date"`
	TotalSalesCents  int64  `json:"total_sales_cents"`
	TransactionCount int    `json:"transaction_count"`
	ItemsSold        int    `json:"items_sold"`
	Transactions     []Sale `json:"transactions"`
}

type DailyTotal struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"total_cents"`
}

type MonthlySalesReport struct {
	Year             int          `json:"year"`
	Month            int          `json:"month"`
	TotalSalesCents  int64        `json:"total_sales_cents"`
	TransactionCount int          `json:"transaction_count"`
	DailyTotals      []DailyTotal `json:"daily_totals"`
}

type PurchaseReportLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	QtyRestocked   int    `json:"qty_restocked"`
	UnitCostCents  int64  `json:"unit_cost_cents"`
	TotalCostCents int64  `json:"total_cost_cents"`
}

type DailyPurchaseReport struct {
	Date  string               `json:"date"`
	Lines []PurchaseReportLine `json:"lines"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	SessionToken string `json:"session_token"`
	Role         string `json:"role"`
	ExpiresAt    string `json:"expires_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Actor is the authenticated user derived from a session token. It is
// carried in the context of every service call for role checks.
type Actor struct {
	Username string
	Role     string
}

// UserAccount is the persistence model for auth credentials. Password
// holds a bcrypt hash.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	CreatedAt time.Time
}

// Snapshot is the full repository state, used by the JSON file store to
// persist everything in one document.
type Snapshot struct {
	Products    []Product         `json:"products"`
	Adjustments []StockAdjustment `json:"adjustments"`
	Sales       []Sale            `json:"sales"`
	Users       []UserAccount     `json:"users"`
}

const (
	RoleAdmin    = "admin"
	RoleSalesman = "salesman"
)

const (
	AdjustmentSourceRestock = "restock"
	AdjustmentSourceSale    = "sale"
	AdjustmentSourceManual  = "manual"
)
