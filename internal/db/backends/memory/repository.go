package memory

import (
	"context"
	"sort"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
)

// Save inserts a new post or updates title and content of an existing one
func (db *Database) Save(ctx context.Context, post *entities.Post) (*entities.Post, error) {
	validate := post.Validate
	if post.ID != 0 {
		validate = post.ValidateContent
	}
	if err := validate(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.connected {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	if post.ID == 0 {
		db.nextID++
		record := &entities.Post{
			ID:      db.nextID,
			Title:   post.Title,
			Content: post.Content,
			Author:  post.Author,
		}
		record.MarkCreated(db.now())
		db.posts[record.ID] = record
		return record.Clone(), nil
	}

	existing, ok := db.posts[post.ID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}

	// Author and CreatedAt are immutable; only the content fields move.
	updated := existing.Clone()
	updated.ApplyUpdate(post.Title, post.Content, db.now())
	db.posts[updated.ID] = updated
	return updated.Clone(), nil
}

func (db *Database) FindByID(ctx context.Context, id int64) (*entities.Post, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	post, ok := db.posts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return post.Clone(), nil
}

func (db *Database) ExistsByID(ctx context.Context, id int64) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.connected {
		return false, interfaces.ErrDatabaseNotConnected
	}

	_, ok := db.posts[id]
	return ok, nil
}

func (db *Database) DeleteByID(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.connected {
		return interfaces.ErrDatabaseNotConnected
	}

	if _, ok := db.posts[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(db.posts, id)
	return nil
}

func (db *Database) FindAllPaged(ctx context.Context, page interfaces.PageRequest) ([]*entities.Post, int64, error) {
	if err := page.Validate(); err != nil {
		return nil, 0, err
	}

	db.mu.RLock()
	if !db.connected {
		db.mu.RUnlock()
		return nil, 0, interfaces.ErrDatabaseNotConnected
	}
	records := make([]*entities.Post, 0, len(db.posts))
	for _, post := range db.posts {
		records = append(records, post.Clone())
	}
	db.mu.RUnlock()

	sortByCreatedAt(records, page.Sort)

	start, end := page.Bounds(len(records))
	return records[start:end], int64(len(records)), nil
}

// sortByCreatedAt orders posts by creation time, breaking ties by id
func sortByCreatedAt(posts []*entities.Post, dir interfaces.SortDirection) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
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
