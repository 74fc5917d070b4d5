package db

import (
	"context"
	"errors"
	"testing"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
)

func TestInMemoryPostStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewPostStore(Config{Type: TypeMemory})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := ConnectAndMigrate(ctx, store, true); err != nil {
		t.Fatalf("Failed to connect and migrate: %v", err)
	}
	defer store.Disconnect(ctx)

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Store should be healthy: %v", err)
	}

	t.Run("CRUD Operations", func(t *testing.T) {
		testCRUDOperations(t, ctx, store)
	})

	t.Run("Fixtures", func(t *testing.T) {
		testFixtures(t, ctx, store)
	})
}

func testCRUDOperations(t *testing.T, ctx context.Context, store interfaces.PostStore) {
	// Create
	created, err := store.Save(ctx, &entities.Post{Title: "A", Content: "B", Author: "C"})
	if err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Post ID should be assigned")
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("Expected updated_at == created_at on create, got %v vs %v", created.UpdatedAt, created.CreatedAt)
	}

	// Read
	found, err := store.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("Failed to get post by ID: %v", err)
	}
	if found.Title != "A" || found.Content != "B" || found.Author != "C" {
		t.Errorf("Unexpected post fields: %+v", found)
	}

	// Update
	updated, err := store.Save(ctx, &entities.Post{ID: created.ID, Title: "Z", Content: "B2", Author: "someone else"})
	if err != nil {
		t.Fatalf("Failed to update post: %v", err)
	}
	if updated.Title != "Z" {
		t.Errorf("Expected title 'Z', got '%v'", updated.Title)
	}
	if updated.Author != "C" {
		t.Errorf("Author must not change on update, got '%v'", updated.Author)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at must not change on update")
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("Expected updated_at > created_at after update")
	}

	// Delete
	if err := store.DeleteByID(ctx, created.ID); err != nil {
		t.Fatalf("Failed to delete post: %v", err)
	}

	// Verify deletion
	_, err = store.FindByID(ctx, created.ID)
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after deletion, got: %v", err)
	}
	if err := store.DeleteByID(ctx, created.ID); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got: %v", err)
	}
}

func testFixtures(t *testing.T, ctx context.Context, store interfaces.PostStore) {
	fixtures := PostFixtures()
	for i := range fixtures {
		if _, err := store.Save(ctx, &fixtures[i]); err != nil {
			t.Fatalf("Failed to save fixture %d: %v", i, err)
		}
	}

	posts, total, err := store.FindAllPaged(ctx, interfaces.PageRequest{Page: 0, Size: 2, Sort: interfaces.SortDesc})
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	if total != int64(len(fixtures)) {
		t.Errorf("Expected total %d, got %d", len(fixtures), total)
	}
	if len(posts) != 2 {
		t.Errorf("Expected 2 posts on first page, got %d", len(posts))
	}
}

func TestNewPostStoreErrors(t *testing.T) {
	if _, err := NewPostStore(Config{Type: TypePostgres}); err == nil {
		t.Error("Expected error for postgres without DSN")
	}
	if _, err := NewPostStore(Config{Type: "sqlite"}); err == nil {
		t.Error("Expected error for unsupported type")
	}
}
