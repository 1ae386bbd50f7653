package core

import (
	"context"
	"fmt"

	"testrig/internal/infra/persistence/memory"
	"testrig/internal/infra/persistence/postgres"
	"testrig/internal/infra/persistence/redis"
	"testrig/internal/infra/persistence/sqlite"
	"testrig/pkg/domain"
)

// StorageDriver identifies a concrete session store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis server
)

// StorageOptions selects and configures the session store.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	RedisAddr   string
}

// OpenSessionStore opens the backend named by opts.Driver. An empty driver
// selects sqlite.
func OpenSessionStore(ctx context.Context, opts StorageOptions) (domain.SessionStore, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(ctx, opts.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, opts.PostgresDSN)
	case StorageRedis:
		return redis.NewStore(ctx, opts.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
