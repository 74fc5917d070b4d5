package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostValidate(t *testing.T) {
	tests := []struct {
		name    string
		post    Post
		wantErr bool
	}{
		{"valid", Post{Title: "t", Content: "c", Author: "a"}, false},
		{"missing title", Post{Title: "  ", Content: "c", Author: "a"}, true},
		{"missing content", Post{Title: "t", Content: "", Author: "a"}, true},
		{"missing author", Post{Title: "t", Content: "c"}, true},
		{"title at limit", Post{Title: strings.Repeat("가", MaxTitleLength), Content: "c", Author: "a"}, false},
		{"title too long", Post{Title: strings.Repeat("x", MaxTitleLength+1), Content: "c", Author: "a"}, true},
		{"author too long", Post{Title: "t", Content: "c", Author: strings.Repeat("x", MaxAuthorLength+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPost)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyUpdateAdvancesUpdatedAt(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Post{Title: "A", Content: "B", Author: "C"}
	p.MarkCreated(created)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	// Same instant: still strictly later.
	p.ApplyUpdate("Z", "B", created)
	assert.True(t, p.UpdatedAt.After(p.CreatedAt))
	assert.Equal(t, created, p.CreatedAt)

	// Clock went backwards: still strictly later than the previous update.
	prev := p.UpdatedAt
	p.ApplyUpdate("Y", "B", created.Add(-time.Hour))
	assert.True(t, p.UpdatedAt.After(prev))

	later := created.Add(time.Hour)
	p.ApplyUpdate("X", "B", later)
	assert.Equal(t, later, p.UpdatedAt)
	assert.Equal(t, "X", p.Title)
}
