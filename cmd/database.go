package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/sigboard/internal/config"
	"github.com/kozaktomas/sigboard/internal/database/postgres"
)

// openSignatureRepository connects to PostgreSQL, applies migrations and
// registers the signature repository as the active backend.
func openSignatureRepository(ctx context.Context, cfg *config.Config) (*postgres.SignatureRepository, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	repo := postgres.NewSignatureRepository(pool)
	postgres.Register(repo)

	closeFn := func() {
		if err := pool.Close(); err != nil {
			fmt.Printf("Warning: failed to close database pool: %v\n", err)
		}
	}
	return repo, closeFn, nil
}

// indexOptions maps the index configuration to repository options.
func indexOptions(cfg *config.IndexConfig) postgres.IndexOptions {
	return postgres.IndexOptions{
		Words:        cfg.Words,
		WordsPath:    cfg.WordsPath,
		HNSW:         cfg.HNSW,
		HNSWPath:     cfg.HNSWPath,
		HNSWM:        cfg.HNSWM,
		HNSWEfSearch: cfg.HNSWEfSearch,
	}
}
