package interfaces

import (
	"context"

	"github.com/noticeboard/board-backend/internal/db/entities"
)

// PostStore is the relational store of record for posts
type PostStore interface {
	// Connect establishes a connection to the database
	Connect(ctx context.Context) error

	// Disconnect closes the database connection
	Disconnect(ctx context.Context) error

	// Ping reports whether the database is reachable
	Ping(ctx context.Context) error

	// Migrate creates tables and applies schema changes
	Migrate(ctx context.Context) error

	// Save inserts the post when ID is zero, otherwise updates its title and content.
	// Inserts assign ID, CreatedAt and UpdatedAt; updates advance UpdatedAt.
	Save(ctx context.Context, post *entities.Post) (*entities.Post, error)

	// FindByID returns ErrNotFound when the post does not exist
	FindByID(ctx context.Context, id int64) (*entities.Post, error)

	ExistsByID(ctx context.Context, id int64) (bool, error)

	// DeleteByID returns ErrNotFound when nothing was deleted
	DeleteByID(ctx context.Context, id int64) error

	// FindAllPaged returns one page ordered by created_at (then id) and the total row count
	FindAllPaged(ctx context.Context, page PageRequest) ([]*entities.Post, int64, error)
}
