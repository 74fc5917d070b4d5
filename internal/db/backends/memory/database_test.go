package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnected(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db := NewDatabase(opts...)
	require.NoError(t, db.Connect(context.Background()))
	return db
}

func TestSave_AssignsMonotonicIDs(t *testing.T) {
	db := newConnected(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		p, err := db.Save(ctx, &entities.Post{Title: "t", Content: "c", Author: "a"})
		require.NoError(t, err)
		assert.Greater(t, p.ID, last)
		last = p.ID
	}

	// Deleting the newest post never frees its id.
	require.NoError(t, db.DeleteByID(ctx, last))
	p, err := db.Save(ctx, &entities.Post{Title: "t", Content: "c", Author: "a"})
	require.NoError(t, err)
	assert.Equal(t, last+1, p.ID)
}

func TestSave_UpdateWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	db := newConnected(t, WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	created, err := db.Save(ctx, &entities.Post{Title: "A", Content: "B", Author: "C"})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	updated, err := db.Save(ctx, &entities.Post{ID: created.ID, Title: "Z", Content: "B"})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "C", updated.Author)
}

func TestSave_ValidationAndMissing(t *testing.T) {
	db := newConnected(t)
	ctx := context.Background()

	_, err := db.Save(ctx, &entities.Post{Title: "", Content: "c", Author: "a"})
	assert.ErrorIs(t, err, entities.ErrInvalidPost)

	_, err = db.Save(ctx, &entities.Post{ID: 42, Title: "t", Content: "c", Author: "a"})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestReturnedPostsAreCopies(t *testing.T) {
	db := newConnected(t)
	ctx := context.Background()

	p, err := db.Save(ctx, &entities.Post{Title: "t", Content: "c", Author: "a"})
	require.NoError(t, err)
	p.Title = "mutated"

	found, err := db.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", found.Title)
}

func TestFindAllPaged(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	db := newConnected(t, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := db.Save(ctx, &entities.Post{Title: "t", Content: "c", Author: "a"})
		require.NoError(t, err)
	}

	t.Run("desc first page", func(t *testing.T) {
		posts, total, err := db.FindAllPaged(ctx, interfaces.PageRequest{Page: 0, Size: 10, Sort: interfaces.SortDesc})
		require.NoError(t, err)
		assert.EqualValues(t, 25, total)
		require.Len(t, posts, 10)
		assert.EqualValues(t, 25, posts[0].ID)
		assert.EqualValues(t, 16, posts[9].ID)
	})

	t.Run("asc last partial page", func(t *testing.T) {
		posts, total, err := db.FindAllPaged(ctx, interfaces.PageRequest{Page: 2, Size: 10, Sort: interfaces.SortAsc})
		require.NoError(t, err)
		assert.EqualValues(t, 25, total)
		require.Len(t, posts, 5)
		assert.EqualValues(t, 21, posts[0].ID)
	})

	t.Run("beyond last page", func(t *testing.T) {
		posts, total, err := db.FindAllPaged(ctx, interfaces.PageRequest{Page: 15, Size: 10, Sort: interfaces.SortDesc})
		require.NoError(t, err)
		assert.EqualValues(t, 25, total)
		assert.Empty(t, posts)
	})

	t.Run("invalid size", func(t *testing.T) {
		_, _, err := db.FindAllPaged(ctx, interfaces.PageRequest{Page: 0, Size: 0, Sort: interfaces.SortDesc})
		assert.ErrorIs(t, err, interfaces.ErrInvalidQuery)
	})
}

func TestNotConnected(t *testing.T) {
	db := NewDatabase()
	ctx := context.Background()

	_, err := db.FindByID(ctx, 1)
	assert.ErrorIs(t, err, interfaces.ErrDatabaseNotConnected)
	assert.ErrorIs(t, db.Ping(ctx), interfaces.ErrDatabaseNotConnected)
}

func TestConcurrentSaves(t *testing.T) {
	db := newConnected(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.Save(ctx, &entities.Post{Title: "t", Content: "c", Author: "a"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, db.Len())
}
