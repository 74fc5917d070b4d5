package kvindex

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
	"github.com/noticeboard/board-backend/internal/search/searchtest"
	"github.com/noticeboard/board-backend/pkg/kv/memory"
	kvredis "github.com/noticeboard/board-backend/pkg/kv/redis"
)

func newMemoryIndex(t *testing.T) *Index {
	idx := New(memory.New(), "test")
	require.NoError(t, idx.EnsureIndex(context.Background()))
	return idx
}

func TestMemoryIndexConformance(t *testing.T) {
	searchtest.RunConformanceTests(t, func(t *testing.T) search.Index {
		return newMemoryIndex(t)
	})
}

func TestRedisIndexConformance(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	searchtest.RunConformanceTests(t, func(t *testing.T) search.Index {
		store, err := kvredis.New(redisURL)
		require.NoError(t, err)
		idx := New(store, "conformance")
		require.NoError(t, idx.Reset(context.Background()))
		return idx
	})
}

func TestUpsertMovesPostings(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	idx := New(store, "test")

	require.NoError(t, idx.Upsert(ctx, searchtest.Doc(7, "old words", "body", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, searchtest.Doc(7, "new words", "body", "alice", 1)))

	n, err := store.Exists(ctx, idx.postingKey("title", "old"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "posting for a replaced term should be gone")

	ok, err := store.SIsMember(ctx, idx.postingKey("title", "words"), []byte("7"))
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReplacedTermStopsMatchingPartially(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	idx := New(store, "test")

	require.NoError(t, idx.Upsert(ctx, searchtest.Doc(7, "hello", "body", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, searchtest.Doc(7, "goodbye", "body", "alice", 1)))

	// "hello" stays in the term set but its posting set is empty
	ok, err := store.SIsMember(ctx, idx.termsKey("title"), []byte("hello"))
	require.NoError(t, err)
	assert.True(t, ok)

	pageReq := interfaces.PageRequest{Page: 0, Size: 10, Sort: interfaces.SortDesc}
	res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: "ell", Page: pageReq})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, int64(0), res.Total)

	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "dby", Page: pageReq})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestResetRemovesAllKeys(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	idx := New(store, "test")
	require.NoError(t, idx.EnsureIndex(ctx))

	require.NoError(t, idx.Upsert(ctx, searchtest.Doc(1, "alpha beta", "gamma", "alice", 1)))
	require.NoError(t, idx.Reset(ctx))

	for _, key := range []string{
		idx.postingKey("title", "alpha"),
		idx.postingKey("content", "gamma"),
		idx.postingKey("author", "alice"),
		idx.termsKey("title"),
		idx.termsKey("content"),
		idx.docsKey(),
		idx.registryKey(),
	} {
		n, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n, key)
	}

	version, err := idx.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestIndexesAreIsolatedByName(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := New(store, "a")
	b := New(store, "b")

	require.NoError(t, a.Upsert(ctx, searchtest.Doc(1, "shared", "x", "alice", 1)))

	res, err := b.FindByTitleContaining(ctx, search.Query{
		Keyword: "shared",
		Page:    interfaces.PageRequest{Page: 0, Size: 10, Sort: interfaces.SortDesc},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestFindRejectsInvalidPage(t *testing.T) {
	idx := newMemoryIndex(t)
	_, err := idx.FindByTitleContaining(context.Background(), search.Query{
		Keyword: "x",
		Page:    interfaces.PageRequest{Page: 0, Size: 0, Sort: interfaces.SortDesc},
	})
	assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)
}

func TestRegisteredBackends(t *testing.T) {
	idx, err := search.NewIndex(context.Background(), search.Config{Backend: search.BackendMemory})
	require.NoError(t, err)
	defer idx.Close()

	assert.Contains(t, search.RegisteredBackends(), string(search.BackendRedis))
	require.NoError(t, idx.Ping(context.Background()))
}
