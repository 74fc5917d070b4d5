package search

import (
	"time"

	"github.com/noticeboard/board-backend/internal/db/entities"
)

// Document is the denormalized copy of a post held by the search index.
// Title and Content are tokenized; Author only matches exactly.
type Document struct {
	ID        int64     `json:"id" cbor:"id"`
	Title     string    `json:"title" cbor:"title"`
	Content   string    `json:"content" cbor:"content"`
	Author    string    `json:"author" cbor:"author"`
	CreatedAt time.Time `json:"createdAt" cbor:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" cbor:"updated_at"`
}

// FromPost builds the index document for the current state of a post
func FromPost(p *entities.Post) Document {
	return Document{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.Author,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}
