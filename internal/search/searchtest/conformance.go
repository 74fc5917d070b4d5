// Package searchtest provides conformance tests for search.Index implementations
package searchtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
)

// IndexFactory creates an empty, ready Index for one test
type IndexFactory func(t *testing.T) search.Index

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Doc builds a document created n seconds after a fixed base time
func Doc(id int64, title, content, author string, n int) search.Document {
	ts := base.Add(time.Duration(n) * time.Second)
	return search.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		Author:    author,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func page(p, size int, dir interfaces.SortDirection) interfaces.PageRequest {
	return interfaces.PageRequest{Page: p, Size: size, Sort: dir}
}

func ids(r search.Result) []int64 {
	out := make([]int64, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = d.ID
	}
	return out
}

// RunConformanceTests runs all conformance tests against an Index implementation
func RunConformanceTests(t *testing.T, factory IndexFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, idx search.Index)
	}{
		{"TitleMatchIsTokenized", testTitleTokenized},
		{"PartialTerms", testPartialTerms},
		{"ContentOnly", testContentOnly},
		{"TitleOrContent", testTitleOrContent},
		{"AuthorExact", testAuthorExact},
		{"UpsertOverwrites", testUpsertOverwrites},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"PagingAndSort", testPagingAndSort},
		{"Reset", testReset},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := factory(t)
			defer idx.Close()
			tt.test(t, idx)
		})
	}
}

func testTitleTokenized(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "Hello, World!", "first body", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, Doc(2, "Another post", "world peace", "bob", 2)))

	res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: "WORLD", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res))
	assert.Equal(t, int64(1), res.Total)

	got := res.Documents[0]
	assert.Equal(t, "Hello, World!", got.Title)
	assert.Equal(t, "first body", got.Content)
	assert.Equal(t, "alice", got.Author)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Second)))

	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "peace", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, int64(0), res.Total)
}

func testPartialTerms(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "hello world", "plain body", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, Doc(2, "other post", "say HELLO again", "bob", 2)))

	for _, kw := range []string{"hello", "hel", "ello", "LLO", "wor"} {
		res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: kw, Page: page(0, 10, interfaces.SortDesc)})
		require.NoError(t, err, kw)
		assert.Equal(t, []int64{1}, ids(res), kw)
	}

	res, err := idx.FindByContentContaining(ctx, search.Query{Keyword: "ell", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res))

	res, err = idx.FindByTitleOrContentContaining(ctx, search.Query{Keyword: "ell", Page: page(0, 10, interfaces.SortAsc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(res))
	assert.Equal(t, int64(2), res.Total)

	// a fragment never spans two terms
	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "loworld", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)

	// author stays exact
	res, err = idx.FindByAuthor(ctx, search.Query{Keyword: "ali", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func testContentOnly(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "golang", "nothing here", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, Doc(2, "other", "learning golang today", "bob", 2)))

	res, err := idx.FindByContentContaining(ctx, search.Query{Keyword: "golang", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res))
}

func testTitleOrContent(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "golang tips", "x", "alice", 1)))
	require.NoError(t, idx.Upsert(ctx, Doc(2, "other", "golang today", "bob", 2)))
	require.NoError(t, idx.Upsert(ctx, Doc(3, "unrelated", "text", "carol", 3)))

	res, err := idx.FindByTitleOrContentContaining(ctx, search.Query{Keyword: "golang", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(res))
	assert.Equal(t, int64(2), res.Total)

	// any one term is enough
	res, err = idx.FindByTitleOrContentContaining(ctx, search.Query{Keyword: "tips text", Page: page(0, 10, interfaces.SortAsc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(res))
}

func testAuthorExact(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "a", "b", "Alice", 1)))
	require.NoError(t, idx.Upsert(ctx, Doc(2, "c", "d", "Alice Smith", 2)))

	for _, kw := range []string{"alice", "Ali", "Smith"} {
		res, err := idx.FindByAuthor(ctx, search.Query{Keyword: kw, Page: page(0, 10, interfaces.SortDesc)})
		require.NoError(t, err)
		assert.Empty(t, res.Documents, "keyword %q", kw)
	}

	res, err := idx.FindByAuthor(ctx, search.Query{Keyword: "Alice", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(res))
}

func testUpsertOverwrites(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "A", "B", "C", 1)))

	updated := Doc(1, "Z", "B", "C", 1)
	updated.UpdatedAt = updated.UpdatedAt.Add(time.Minute)
	require.NoError(t, idx.Upsert(ctx, updated))

	res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: "A", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)

	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "Z", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.True(t, res.Documents[0].UpdatedAt.Equal(updated.UpdatedAt))
}

func testDeleteIdempotent(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "remove me", "body", "alice", 1)))

	require.NoError(t, idx.DeleteByID(ctx, 1))
	require.NoError(t, idx.DeleteByID(ctx, 1))
	require.NoError(t, idx.DeleteByID(ctx, 999))

	res, err := idx.FindByTitleOrContentContaining(ctx, search.Query{Keyword: "remove body", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, int64(0), res.Total)
}

func testPagingAndSort(t *testing.T, idx search.Index) {
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		require.NoError(t, idx.Upsert(ctx, Doc(int64(i), "notice", "body", "alice", i)))
	}

	res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: "notice", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{25, 24, 23, 22, 21, 20, 19, 18, 17, 16}, ids(res))
	assert.Equal(t, int64(25), res.Total)

	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "notice", Page: page(2, 10, interfaces.SortAsc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{21, 22, 23, 24, 25}, ids(res))

	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "notice", Page: page(15, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, int64(25), res.Total)
}

func testReset(t *testing.T, idx search.Index) {
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, Doc(1, "stale", "doc", "alice", 1)))
	require.NoError(t, idx.Reset(ctx))

	res, err := idx.FindByTitleContaining(ctx, search.Query{Keyword: "stale", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)

	require.NoError(t, idx.Upsert(ctx, Doc(2, "fresh", "doc", "alice", 2)))
	res, err = idx.FindByTitleContaining(ctx, search.Query{Keyword: "fresh", Page: page(0, 10, interfaces.SortDesc)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(res))
}

func testPing(t *testing.T, idx search.Index) {
	assert.NoError(t, idx.Ping(context.Background()))
}
