package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bcnelson/psm-connector/internal/config"
	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/storage"
	"github.com/bcnelson/psm-connector/internal/storage/file"
	"github.com/bcnelson/psm-connector/internal/storage/memory"
	"github.com/bcnelson/psm-connector/internal/storage/redis"
	"github.com/bcnelson/psm-connector/internal/storage/sql"
)

// openStore opens the session store selected by the configuration.
func openStore(ctx context.Context, cfg config.SessionConfig) (storage.SessionStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case "file":
		return file.New(cfg.TmpFileRoot), nil
	case "memory":
		return memory.New(), nil
	case "redis":
		return redis.New(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "sqlite3":
		// Create the database directory if needed
		if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return sql.New(cfg.Store, cfg.DSN)
	case "postgres":
		return sql.New(cfg.Store, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown session store %q", domain.ErrConfiguration, cfg.Store)
	}
}
