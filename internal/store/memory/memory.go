package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	adjustments     []domain.StockAdjustment
	sales           []domain.Sale
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[int64]domain.Product),
		adjustments:     make([]domain.StockAdjustment, 0, 64),
		sales:           make([]domain.Sale, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_SALESMAN_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the app uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	salesmanPwd := envOr("SEED_SALESMAN_PASSWORD", "salesman123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SALESMAN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SALESMAN_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"salesman", salesmanPwd, domain.RoleSalesman},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: 1, Name: "Pen", Category: "stationery", PriceCents: 200, Stock: 10},
		{ID: 2, Name: "Notebook A5", Category: "stationery", PriceCents: 1500, Stock: 40},
		{ID: 3, Name: "Pencil HB", Category: "stationery", PriceCents: 150, Stock: 60},
		{ID: 4, Name: "Eraser", Category: "stationery", PriceCents: 100, Stock: 35},
		{ID: 5, Name: "Stapler", Category: "office", PriceCents: 4200, Stock: 8},
		{ID: 6, Name: "Printer Paper 500pk", Category: "office", PriceCents: 5900, Stock: 20},
		{ID: 7, Name: "Highlighter", Category: "stationery", PriceCents: 350, Stock: 25},
		{ID: 8, Name: "Sticky Notes", Category: "office", PriceCents: 450, Stock: 30},
	}

	productMap := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	return &Store{
		products:        productMap,
		adjustments:     make([]domain.StockAdjustment, 0, 64),
		sales:           make([]domain.Sale, 0, 64),
		usersByUsername: seedUsers(),
	}
}

// NewFromSnapshot rebuilds a store from a previously captured snapshot.
func NewFromSnapshot(snap domain.Snapshot) *Store {
	s := New()
	for _, p := range snap.Products {
		s.products[p.ID] = cloneProduct(p)
	}
	for _, adj := range snap.Adjustments {
		s.adjustments = append(s.adjustments, adj)
	}
	for _, sale := range snap.Sales {
		s.sales = append(s.sales, cloneSale(sale))
	}
	for _, u := range snap.Users {
		s.usersByUsername[u.Username] = u
	}
	return s
}

// Snapshot captures the full store state in a deterministic order.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		Products:    make([]domain.Product, 0, len(s.products)),
		Adjustments: make([]domain.StockAdjustment, len(s.adjustments)),
		Sales:       make([]domain.Sale, 0, len(s.sales)),
		Users:       make([]domain.UserAccount, 0, len(s.usersByUsername)),
	}
	for _, p := range s.products {
		snap.Products = append(snap.Products, cloneProduct(p))
	}
	slices.SortFunc(snap.Products, func(a, b domain.Product) int {
		return cmpInt64(a.ID, b.ID)
	})
	copy(snap.Adjustments, s.adjustments)
	for _, sale := range s.sales {
		snap.Sales = append(snap.Sales, cloneSale(sale))
	}
	for _, u := range s.usersByUsername {
		snap.Users = append(snap.Users, u)
	}
	slices.SortFunc(snap.Users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return snap
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpInt64(a.ID, b.ID)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicateID
	}

	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) {
			matches = append(matches, cloneProduct(p))
		}
	}

	slices.SortFunc(matches, func(a, b domain.Product) int {
		return cmpInt64(a.ID, b.ID)
	})

	return matches, nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Stock <= threshold {
			matches = append(matches, cloneProduct(p))
		}
	}

	slices.SortFunc(matches, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpInt64(a.ID, b.ID)
		}
		return a.Stock - b.Stock
	})

	return matches, nil
}

func (s *Store) ListExpiring(_ context.Context, before time.Time) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.ExpiryDate != nil && p.ExpiryDate.Before(before) {
			matches = append(matches, cloneProduct(p))
		}
	}

	slices.SortFunc(matches, func(a, b domain.Product) int {
		if a.ExpiryDate.Equal(*b.ExpiryDate) {
			return cmpInt64(a.ID, b.ID)
		}
		if a.ExpiryDate.Before(*b.ExpiryDate) {
			return -1
		}
		return 1
	})

	return matches, nil
}

func (s *Store) ApplyAdjustment(_ context.Context, adj domain.StockAdjustment) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if adj.Delta == 0 {
		return nil, store.ErrInvalidInput
	}
	product, exists := s.products[adj.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	newStock := product.Stock + adj.Delta
	if newStock < 0 {
		return nil, store.ErrInsufficientStock
	}

	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	if adj.At.IsZero() {
		adj.At = time.Now().UTC()
	}
	product.Stock = newStock
	s.products[adj.ProductID] = product
	s.adjustments = append(s.adjustments, adj)

	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) ListAdjustments(_ context.Context, from time.Time, to time.Time) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.StockAdjustment, 0, 16)
	for _, adj := range s.adjustments {
		if adj.At.Before(from) || !adj.At.Before(to) {
			continue
		}
		matches = append(matches, adj)
	}

	slices.SortFunc(matches, func(a, b domain.StockAdjustment) int {
		if a.At.Equal(b.At) {
			return cmpString(a.ID, b.ID)
		}
		if a.At.Before(b.At) {
			return -1
		}
		return 1
	})

	return matches, nil
}

// CreateSale validates and applies an entire sale atomically: every line
// must reference an existing product with enough stock, or nothing changes.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	// Fold duplicate lines before validating so a sale cannot slip past
	// the stock check by splitting one product across lines.
	needed := make(map[int64]int, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		needed[line.ProductID] += line.Qty
	}
	for id, qty := range needed {
		product, exists := s.products[id]
		if !exists {
			return nil, store.ErrNotFound
		}
		if product.Stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	for id, qty := range needed {
		product := s.products[id]
		product.Stock -= qty
		s.products[id] = product
		s.adjustments = append(s.adjustments, domain.StockAdjustment{
			ID:        xid.New("adj"),
			ProductID: id,
			Delta:     -qty,
			Source:    domain.AdjustmentSourceSale,
			At:        sale.CreatedAt,
		})
	}

	s.sales = append(s.sales, cloneSale(sale))
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		matches = append(matches, cloneSale(sale))
	}

	slices.SortFunc(matches, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return matches, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrDuplicateUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cmpInt64(a int64, b int64) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	lines := make([]domain.SaleLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return dup
}
