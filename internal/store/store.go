package store

import (
	"context"
	"errors"
	"time"

	"tokopos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateID       = errors.New("duplicate product id")
	ErrDuplicateUser     = errors.New("duplicate user")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	ListExpiring(ctx context.Context, before time.Time) ([]domain.Product, error)
	ApplyAdjustment(ctx context.Context, adj domain.StockAdjustment) (*domain.Product, error)
	ListAdjustments(ctx context.Context, from time.Time, to time.Time) ([]domain.StockAdjustment, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
