// Package store picks the repository backend from configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/config"
	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
	pg "github.com/hamed0406/netdetective/internal/repo/postgres"
	"github.com/hamed0406/netdetective/internal/repo/sqlite"
)

// Open returns a postgres store when DATABASE_URL is set and a sqlite store
// at DB_PATH otherwise.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, string, error) {
	if cfg.DatabaseURL != "" {
		s, err := pg.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}
		return s, "postgres", nil
	}
	s, err := sqlite.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
	}
	return s, "sqlite", nil
}

// Seed creates every target whose name is not taken yet. Names compare
// case-insensitively. It returns the targets it created.
func Seed(ctx context.Context, ts repo.TargetStore, seeds []domain.Target) ([]domain.Target, error) {
	existing, err := ts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, t := range existing {
		taken[strings.ToLower(t.Name)] = true
	}

	var created []domain.Target
	for _, t := range seeds {
		key := strings.ToLower(t.Name)
		if taken[key] {
			continue
		}
		t.ID = 0
		if err := ts.Create(ctx, &t); err != nil {
			return created, fmt.Errorf("create %q: %w", t.Name, err)
		}
		taken[key] = true
		created = append(created, t)
	}
	return created, nil
}
