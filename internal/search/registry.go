package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Backend names a search index implementation
type Backend string

const (
	BackendMemory        Backend = "memory"
	BackendRedis         Backend = "redis"
	BackendMongo         Backend = "mongo"
	BackendElasticsearch Backend = "elasticsearch"
)

// DefaultIndexName is the index, key prefix or collection the documents live in
const DefaultIndexName = "boards"

// ErrUnknownBackend is returned when no factory is registered for a backend
var ErrUnknownBackend = errors.New("unknown search backend")

// Config holds connection settings for every backend; each uses its own fields
type Config struct {
	Backend   Backend
	IndexName string

	RedisURL string

	MongoURI      string
	MongoDatabase string

	ElasticsearchURLs []string
}

// IndexFactory builds an Index for a configuration
type IndexFactory func(ctx context.Context, cfg Config) (Index, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Backend]IndexFactory)
)

// RegisterBackend makes a backend available to NewIndex
func RegisterBackend(backend Backend, factory IndexFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[backend] = factory
}

// RegisteredBackends lists the backends linked into the binary
func RegisteredBackends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for b := range factories {
		names = append(names, string(b))
	}
	sort.Strings(names)
	return names
}

// NewIndex creates the configured index and makes sure it exists
func NewIndex(ctx context.Context, cfg Config) (Index, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}

	factoriesMu.RLock()
	factory, ok := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (registered: %s)", ErrUnknownBackend, cfg.Backend,
			strings.Join(RegisteredBackends(), ", "))
	}

	idx, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s index: %w", cfg.Backend, err)
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		idx.Close()
		return nil, fmt.Errorf("ensure %s index %q: %w", cfg.Backend, cfg.IndexName, err)
	}
	return idx, nil
}
