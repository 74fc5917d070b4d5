package memory

import (
	"context"
	"sync"
	"time"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
)

// Database implements interfaces.PostStore for in-memory storage
type Database struct {
	mu        sync.RWMutex
	posts     map[int64]*entities.Post
	nextID    int64
	connected bool

	now func() time.Time
}

// Option configures an in-memory database
type Option func(*Database)

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(db *Database) {
		db.now = now
	}
}

// NewDatabase creates a new in-memory database
func NewDatabase(opts ...Option) *Database {
	db := &Database{
		posts: make(map[int64]*entities.Post),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

var _ interfaces.PostStore = (*Database)(nil)

// Connect establishes a connection to the database
func (db *Database) Connect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = true
	return nil
}

// Disconnect drops all data; ids are never reused across a reconnect
func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.connected = false
	db.posts = make(map[int64]*entities.Post)
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}
	return nil
}

// Migrate is a no-op; the posts table always exists in memory
func (db *Database) Migrate(ctx context.Context) error {
	return db.Ping(ctx)
}

// Len returns the number of stored posts (for testing)
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.posts)
}

// Clear removes all posts (for testing)
func (db *Database) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.posts = make(map[int64]*entities.Post)
}
