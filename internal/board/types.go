package board

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
)

const DefaultPageSize = 10

// ErrInvalidQuery is the same sentinel the stores return for bad paging
var ErrInvalidQuery = interfaces.ErrInvalidQuery

// Source names the store a page was read from
type Source string

const (
	SourceStore Source = "store"
	SourceIndex Source = "index"
)

// PostSummary is the uniform shape of a post in every response
type PostSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromPost maps a post store record
func FromPost(p *entities.Post) PostSummary {
	return PostSummary{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// FromSearchDocument maps a search index document
func FromSearchDocument(d search.Document) PostSummary {
	return PostSummary{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Author:    d.Author,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ListRequest selects one page of posts, optionally filtered by keyword
type ListRequest struct {
	Page       int
	Size       int
	Sort       interfaces.SortDirection
	Keyword    string
	SearchType search.SearchType
}

// DefaultListRequest is page 0 of 10, newest first, across title and content
func DefaultListRequest() ListRequest {
	return ListRequest{
		Page:       0,
		Size:       DefaultPageSize,
		Sort:       interfaces.SortDesc,
		SearchType: search.DefaultSearchType,
	}
}

// HasKeyword reports whether the request goes to the search index
func (r ListRequest) HasKeyword() bool {
	return strings.TrimSpace(r.Keyword) != ""
}

func (r ListRequest) pageRequest() interfaces.PageRequest {
	return interfaces.PageRequest{Page: r.Page, Size: r.Size, Sort: r.Sort}
}

// Validate fills unset sort and search type with defaults and checks bounds
func (r *ListRequest) Validate() error {
	if r.Sort == "" {
		r.Sort = interfaces.SortDesc
	}
	if r.SearchType == "" {
		r.SearchType = search.DefaultSearchType
	}
	if _, err := search.ParseSearchType(string(r.SearchType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return r.pageRequest().Validate()
}

// ParseSort accepts "asc", "desc", or the "createdAt,asc" form. Only
// createdAt can be sorted on.
func ParseSort(s string) (interfaces.SortDirection, error) {
	s = strings.TrimSpace(s)
	if field, dir, ok := strings.Cut(s, ","); ok {
		if !strings.EqualFold(strings.TrimSpace(field), "createdAt") {
			return "", fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, field)
		}
		s = dir
	}
	return interfaces.ParseSortDirection(s)
}

// PageResponse is the paginated envelope returned for every list or search
type PageResponse struct {
	Content       []PostSummary `json:"content"`
	Page          int           `json:"page"`
	Size          int           `json:"size"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
	First         bool          `json:"first"`
	Last          bool          `json:"last"`
}

// TotalPages is ceil(total/size), and 0 for an empty result
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func NewPageResponse(content []PostSummary, page, size int, total int64) PageResponse {
	if content == nil {
		content = []PostSummary{}
	}
	pages := TotalPages(total, size)
	return PageResponse{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
		First:         page == 0,
		Last:          page >= pages-1,
	}
}

// QueryError reports a failed read on the chosen source. There is no
// fallback from the index to the store.
type QueryError struct {
	Source Source
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Source, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError reports whether err came from a failed read
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
