// Package jsonfile persists the whole repository as a single JSON document.
// Reads are served from an in-memory store; every mutation rewrites the file.
// Suited to a single-terminal shop, not concurrent writers on shared disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"tokopos/internal/domain"
	"tokopos/internal/store/memory"
)

type Store struct {
	path string
	mem  *memory.Store
}

// Open loads the snapshot at path, or starts from seeded demo data when the
// file does not exist yet. The file is created on the first mutation.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[jsonfile-store] %s not found, starting with seed data", path)
		return &Store{path: path, mem: memory.NewSeeded()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}
	return &Store{path: path, mem: memory.NewFromSnapshot(snap)}, nil
}

// persist writes the full snapshot through a temp file and rename so a
// crash mid-write never leaves a truncated data file behind.
func (s *Store) persist() error {
	snap := s.mem.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.mem.ListProducts(ctx)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	created, err := s.mem.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.mem.GetProductByID(ctx, id)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	updated, err := s.mem.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.mem.DeleteProduct(ctx, id); err != nil {
		return err
	}
	return s.persist()
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.mem.SearchProducts(ctx, query)
}

func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	return s.mem.ListLowStock(ctx, threshold)
}

func (s *Store) ListExpiring(ctx context.Context, before time.Time) ([]domain.Product, error) {
	return s.mem.ListExpiring(ctx, before)
}

func (s *Store) ApplyAdjustment(ctx context.Context, adj domain.StockAdjustment) (*domain.Product, error) {
	updated, err := s.mem.ApplyAdjustment(ctx, adj)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListAdjustments(ctx context.Context, from time.Time, to time.Time) ([]domain.StockAdjustment, error) {
	return s.mem.ListAdjustments(ctx, from, to)
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := s.mem.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.mem.ListSales(ctx, from, to)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if err := s.mem.CreateUser(ctx, user); err != nil {
		return err
	}
	return s.persist()
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	return s.mem.GetUser(ctx, username)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return s.mem.ListUsers(ctx)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if err := s.mem.UpdateUserPassword(ctx, username, password); err != nil {
		return err
	}
	return s.persist()
}
