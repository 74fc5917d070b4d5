package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength  = 500
	MaxAuthorLength = 50
)

// ErrInvalidPost is returned when a post fails field validation
var ErrInvalidPost = errors.New("invalid post")

// TimestampPrecision is the resolution both stores keep timestamps at.
// Postgres TIMESTAMPTZ stores microseconds.
const TimestampPrecision = time.Microsecond

// Post represents a board post, the record of truth for the search index
type Post struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Author    string    `json:"author" db:"author"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks required fields and length bounds
func (p *Post) Validate() error {
	if err := p.ValidateContent(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidPost)
	}
	if utf8.RuneCountInString(p.Author) > MaxAuthorLength {
		return fmt.Errorf("%w: author exceeds %d characters", ErrInvalidPost, MaxAuthorLength)
	}
	return nil
}

// ValidateContent checks only the mutable fields, for updates
func (p *Post) ValidateContent() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPost)
	}
	if utf8.RuneCountInString(p.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidPost, MaxTitleLength)
	}
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidPost)
	}
	return nil
}

// MarkCreated stamps a new post. UpdatedAt starts equal to CreatedAt.
func (p *Post) MarkCreated(now time.Time) {
	ts := now.UTC().Truncate(TimestampPrecision)
	p.CreatedAt = ts
	p.UpdatedAt = ts
}

// ApplyUpdate replaces the mutable fields and advances UpdatedAt.
// UpdatedAt always moves strictly forward, even when the clock did not.
func (p *Post) ApplyUpdate(title, content string, now time.Time) {
	p.Title = title
	p.Content = content

	ts := now.UTC().Truncate(TimestampPrecision)
	if !ts.After(p.UpdatedAt) {
		ts = p.UpdatedAt.Add(TimestampPrecision)
	}
	p.UpdatedAt = ts
}

// Clone returns a copy safe to hand outside a store
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
