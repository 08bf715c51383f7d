package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          BIGINT PRIMARY KEY,
			name        TEXT NOT NULL,
			category    TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			stock       INT NOT NULL DEFAULT 0,
			expiry_date DATE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS stock_adjustments (
			id         TEXT PRIMARY KEY,
			product_id BIGINT NOT NULL,
			delta      INT NOT NULL,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			source     TEXT NOT NULL,
			at         TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sales (
			id            TEXT PRIMARY KEY,
			cashier       TEXT NOT NULL,
			lines         JSONB NOT NULL,
			total_cents   BIGINT NOT NULL,
			payment_cents BIGINT NOT NULL,
			change_cents  BIGINT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock, expiry_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, product.ID, product.Name, product.Category, product.PriceCents, product.Stock, nullDate(product.ExpiryDate))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	var expiry sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Category, &product.PriceCents, &product.Stock, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		product.ExpiryDate = &e
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID < 1 || product.Name == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, stock = $5, expiry_date = $6, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.Stock, nullDate(product.ExpiryDate))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%'
		ORDER BY id
	`, escapeLike(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		WHERE stock <= $1
		ORDER BY stock, id
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) ListExpiring(ctx context.Context, before time.Time) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		WHERE expiry_date IS NOT NULL AND expiry_date < $1
		ORDER BY expiry_date, id
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) ApplyAdjustment(ctx context.Context, adj domain.StockAdjustment) (*domain.Product, error) {
	if adj.Delta == 0 {
		return nil, store.ErrInvalidInput
	}
	if adj.ID == "" {
		adj.ID = xid.New("adj")
	}
	if adj.At.IsZero() {
		adj.At = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var product domain.Product
	var expiry sql.NullTime
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock, expiry_date
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, adj.ProductID).Scan(&product.ID, &product.Name, &product.Category, &product.PriceCents, &product.Stock, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if expiry.Valid {
		e := expiry.Time.UTC()
		product.ExpiryDate = &e
	}

	newStock := product.Stock + adj.Delta
	if newStock < 0 {
		return nil, store.ErrInsufficientStock
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
	`, adj.ProductID, newStock)
	if err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (id, product_id, delta, cost_cents, source, at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, adj.ID, adj.ProductID, adj.Delta, adj.CostCents, adj.Source, adj.At)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	product.Stock = newStock
	return &product, nil
}

func (s *Store) ListAdjustments(ctx context.Context, from time.Time, to time.Time) ([]domain.StockAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, delta, cost_cents, source, at
		FROM stock_adjustments
		WHERE at >= $1 AND at < $2
		ORDER BY at, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := make([]domain.StockAdjustment, 0, 32)
	for rows.Next() {
		var adj domain.StockAdjustment
		if err := rows.Scan(&adj.ID, &adj.ProductID, &adj.Delta, &adj.CostCents, &adj.Source, &adj.At); err != nil {
			return nil, err
		}
		adj.At = adj.At.UTC()
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// CreateSale runs the whole sale in one serializable transaction: stock
// rows are locked, validated, decremented, and the sale plus its ledger
// entries land together or not at all.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	needed := make(map[int64]int, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		needed[line.ProductID] += line.Qty
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for id, qty := range needed {
		var stock int
		err := pgTx.QueryRowContext(ctx, `
			SELECT stock FROM products WHERE id = $1 FOR UPDATE
		`, id).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if stock < qty {
			return nil, store.ErrInsufficientStock
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1
		`, id, qty)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO stock_adjustments (id, product_id, delta, cost_cents, source, at)
			VALUES ($1,$2,$3,0,$4,$5)
		`, xid.New("adj"), id, -qty, domain.AdjustmentSourceSale, sale.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	linesJSON, err := json.Marshal(sale.Lines)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, cashier, lines, total_cents, payment_cents, change_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.Cashier, linesJSON, sale.TotalCents, sale.PaymentCents, sale.ChangeCents, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cashier, lines, total_cents, payment_cents, change_cents, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var linesJSON []byte
		if err := rows.Scan(&sale.ID, &sale.Cashier, &linesJSON, &sale.TotalCents, &sale.PaymentCents, &sale.ChangeCents, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(linesJSON, &sale.Lines); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, created_at)
		VALUES ($1,$2,$3,$4)
	`, user.Username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		var expiry sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.Stock, &expiry); err != nil {
			return nil, err
		}
		if expiry.Valid {
			e := expiry.Time.UTC()
			p.ExpiryDate = &e
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// escapeLike neutralizes LIKE metacharacters so user input matches
// literally, the same substring semantics the memory store gives.
func escapeLike(query string) string {
	query = strings.ReplaceAll(query, `\`, `\\`)
	query = strings.ReplaceAll(query, "%", `\%`)
	query = strings.ReplaceAll(query, "_", `\_`)
	return query
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	t := val.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
