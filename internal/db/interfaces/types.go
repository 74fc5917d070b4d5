package interfaces

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// SortDirection orders results by creation time
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts "asc" or "desc" in any case; empty means desc
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return SortDesc, nil
	case "asc":
		return SortAsc, nil
	default:
		return "", fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, s)
	}
}

// PageRequest is a zero-based page of a fixed size
type PageRequest struct {
	Page int           `json:"page"`
	Size int           `json:"size"`
	Sort SortDirection `json:"sort"`
}

func (p PageRequest) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page must be >= 0", ErrInvalidQuery)
	}
	if p.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0", ErrInvalidQuery)
	}
	switch p.Sort {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, p.Sort)
	}
	return nil
}

// Offset is the number of rows preceding the page. It saturates at
// math.MaxInt instead of wrapping, so an absurd page is simply past the end.
func (p PageRequest) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// Bounds clamps the page window to a result set of total items.
// A page past the end yields an empty window.
func (p PageRequest) Bounds(total int) (start, end int) {
	start = p.Offset()
	if start > total || start < 0 {
		return total, total
	}
	end = start + p.Size
	if end > total {
		end = total
	}
	return start, end
}

// Common database errors
var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrDatabaseNotConnected = errors.New("database not connected")
)

// DatabaseError wraps database-specific errors
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
