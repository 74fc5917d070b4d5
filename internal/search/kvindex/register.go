package kvindex

import (
	"context"

	"github.com/noticeboard/board-backend/internal/search"
	"github.com/noticeboard/board-backend/pkg/kv"
	// kv backends used by the memory and redis search backends
	_ "github.com/noticeboard/board-backend/pkg/kv/memory"
	_ "github.com/noticeboard/board-backend/pkg/kv/redis"
)

func init() {
	search.RegisterBackend(search.BackendMemory, func(ctx context.Context, cfg search.Config) (search.Index, error) {
		store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendMemory})
		if err != nil {
			return nil, err
		}
		return New(store, cfg.IndexName), nil
	})

	search.RegisterBackend(search.BackendRedis, func(ctx context.Context, cfg search.Config) (search.Index, error) {
		store, err := kv.NewStoreFromConfig(kv.Config{Backend: kv.BackendRedis, RedisURL: cfg.RedisURL})
		if err != nil {
			return nil, err
		}
		return New(store, cfg.IndexName), nil
	})
}
