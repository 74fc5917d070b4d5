package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noticeboard/board-backend/internal/db/interfaces"
)

// SearchType selects which fields a keyword is matched against
type SearchType string

const (
	SearchTitle          SearchType = "title"
	SearchContent        SearchType = "content"
	SearchTitleOrContent SearchType = "title+content"
	SearchAuthor         SearchType = "author"
)

// DefaultSearchType applies when no selector is given
const DefaultSearchType = SearchTitleOrContent

// ErrInvalidSearchType is returned for an unknown search field selector
var ErrInvalidSearchType = errors.New("invalid search type")

// ParseSearchType accepts the selector as sent by clients. An unescaped
// "title+content" arrives form-decoded as "title content", so spaces are
// read as "+". Empty means title+content.
func ParseSearchType(s string) (SearchType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.Join(strings.Fields(normalized), "+")

	switch SearchType(normalized) {
	case "":
		return DefaultSearchType, nil
	case SearchTitle, SearchContent, SearchTitleOrContent, SearchAuthor:
		return SearchType(normalized), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSearchType, s)
	}
}

// Query is one page of a keyword search
type Query struct {
	Keyword string
	Page    interfaces.PageRequest
}

// Result is one page of matching documents and the total match count
type Result struct {
	Documents []Document
	Total     int64
}

// Index is the secondary full-text and exact-match document store
type Index interface {
	// EnsureIndex creates the index and its mappings when missing
	EnsureIndex(ctx context.Context) error
	// Reset drops every document and recreates the index
	Reset(ctx context.Context) error

	// Upsert writes the document whether or not it already exists
	Upsert(ctx context.Context, doc Document) error
	// DeleteByID removes the document; a missing document is not an error
	DeleteByID(ctx context.Context, id int64) error

	FindByTitleContaining(ctx context.Context, q Query) (Result, error)
	FindByContentContaining(ctx context.Context, q Query) (Result, error)
	// FindByTitleOrContentContaining matches when either field matches
	FindByTitleOrContentContaining(ctx context.Context, q Query) (Result, error)
	// FindByAuthor matches the author exactly, without analysis
	FindByAuthor(ctx context.Context, q Query) (Result, error)

	Ping(ctx context.Context) error
	Close() error
}

// Find dispatches a query to the finder for the search type
func Find(ctx context.Context, idx Index, st SearchType, q Query) (Result, error) {
	switch st {
	case SearchTitle:
		return idx.FindByTitleContaining(ctx, q)
	case SearchContent:
		return idx.FindByContentContaining(ctx, q)
	case SearchTitleOrContent:
		return idx.FindByTitleOrContentContaining(ctx, q)
	case SearchAuthor:
		return idx.FindByAuthor(ctx, q)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidSearchType, st)
	}
}

// SortDocuments orders documents by CreatedAt, then ID, in the given direction
func SortDocuments(docs []Document, dir interfaces.SortDirection) {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if dir == interfaces.SortAsc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if dir == interfaces.SortAsc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

// PageOf sorts all matches and cuts out the requested page
func PageOf(matches []Document, page interfaces.PageRequest) Result {
	SortDocuments(matches, page.Sort)
	start, end := page.Bounds(len(matches))
	out := make([]Document, end-start)
	copy(out, matches[start:end])
	return Result{Documents: out, Total: int64(len(matches))}
}
