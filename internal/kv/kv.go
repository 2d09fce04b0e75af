// Package kv provides the string-keyed backing store the record store
// persists into. Values are opaque bytes; absence is reported through
// ErrNotFound rather than an empty value.
package kv

import (
	"context"
	"errors"
	"fmt"

	"eduport/portfolio/internal/config"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open selects a Store implementation from cfg.StorageDriver:
// memory|sqlite|postgres|redis (default sqlite).
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
