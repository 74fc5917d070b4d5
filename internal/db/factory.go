package db

import (
	"context"
	"fmt"

	"github.com/noticeboard/board-backend/internal/db/backends/memory"
	"github.com/noticeboard/board-backend/internal/db/backends/postgres"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
)

const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// Config holds database configuration
type Config struct {
	Type     string // "memory" or "postgres"
	DSN      string // Postgres connection string
	MaxConns int32  // Maximum pool connections (postgres only)
}

// NewPostStore creates a post store based on configuration
func NewPostStore(config Config) (interfaces.PostStore, error) {
	switch config.Type {
	case "", TypeMemory:
		return memory.NewDatabase(), nil
	case TypePostgres:
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return postgres.NewDatabase(config.DSN, config.MaxConns), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// NewInMemoryPostStore creates a connected in-memory store
func NewInMemoryPostStore() interfaces.PostStore {
	db := memory.NewDatabase()
	_ = db.Connect(context.Background())
	return db
}

// ConnectAndMigrate connects to the database and optionally runs migrations
func ConnectAndMigrate(ctx context.Context, store interfaces.PostStore, migrate bool) error {
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if !migrate {
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
