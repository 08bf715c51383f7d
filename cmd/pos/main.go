package main

import (
	"context"
	"log"
	"os"
	"time"

	"tokopos/internal/auth"
	"tokopos/internal/cli"
	"tokopos/internal/config"
	"tokopos/internal/service"
	"tokopos/internal/store"
	"tokopos/internal/store/jsonfile"
	"tokopos/internal/store/memory"
	pgstore "tokopos/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if cfg.AuthSecret != "" && len(cfg.AuthSecret) < 32 {
		log.Fatalf("AUTH_SECRET must be at least 32 characters when set")
	}
	if cfg.AuthSecret == "" {
		log.Println("[pos] WARNING: AUTH_SECRET not set, using dev session secret")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 1)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	case cfg.DataFile != "":
		jf, err := jsonfile.Open(cfg.DataFile)
		if err != nil {
			log.Fatalf("cannot open data file %s: %v", cfg.DataFile, err)
		}
		repo = jf
		log.Printf("repository: json file (%s)", cfg.DataFile)
	default:
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	svc := service.New(repo, cfg.LowStockThreshold, cfg.ExpiryWarningDays)
	manager := auth.NewManager(cfg.AuthSecret, time.Duration(cfg.SessionTTLMinutes)*time.Minute, repo)

	shell := cli.New(os.Stdin, os.Stdout, manager, svc)
	if err := shell.Run(context.Background()); err != nil {
		log.Printf("shell error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}
