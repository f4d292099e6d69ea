// Package storage selects and opens the post store backend for a run.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/harvest"
	"github.com/JakeFAU/blogharvest/internal/storage/memory"
	"github.com/JakeFAU/blogharvest/internal/storage/mysql"
	"github.com/JakeFAU/blogharvest/internal/storage/postgres"
	"github.com/JakeFAU/blogharvest/internal/storage/sqlite"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config selects a backend and its connection settings.
type Config struct {
	Driver          string
	DSN             string
	Table           string
	MaxConns        int
	MaxConnLifetime time.Duration
}

// RequiresDSN reports whether the driver needs a connection string.
func RequiresDSN(driver string) bool {
	switch strings.ToLower(driver) {
	case DriverPostgres, DriverMySQL, DriverSQLite:
		return true
	default:
		return false
	}
}

// Known reports whether driver names a supported backend.
func Known(driver string) bool {
	return RequiresDSN(driver) || strings.EqualFold(driver, DriverMemory)
}

// Open connects the configured backend. The caller owns the returned store
// and must Close it.
func Open(ctx context.Context, cfg Config, clock harvest.Clock, logger *zap.Logger) (harvest.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(cfg.Driver)
	if RequiresDSN(driver) && cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required for storage driver %q", driver)
	}

	var (
		store harvest.Store
		err   error
	)
	switch driver {
	case DriverPostgres:
		store, err = postgres.NewPostStore(ctx, postgres.PostStoreConfig{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        int32(cfg.MaxConns), //nolint:gosec // bounded by config validation
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
	case DriverMySQL:
		store, err = mysql.NewPostStore(ctx, mysql.PostStoreConfig{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
	case DriverSQLite:
		store, err = sqlite.NewPostStore(ctx, cfg.DSN, cfg.Table, clock)
	case DriverMemory:
		logger.Warn("using in-memory store; records will not outlive this run")
		store = memory.NewPostStore(clock)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	logger.Info("store opened", zap.String("driver", driver))
	return store, nil
}
