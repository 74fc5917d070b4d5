package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/db/migrations"
)

const postColumns = "id, title, content, author, created_at, updated_at"

// Database implements interfaces.PostStore on a pgx connection pool
type Database struct {
	dsn      string
	maxConns int32
	pool     *pgxpool.Pool

	now func() time.Time
}

// NewDatabase creates an unconnected Postgres store. maxConns <= 0 keeps the pgx default.
func NewDatabase(dsn string, maxConns int32) *Database {
	return &Database{
		dsn:      dsn,
		maxConns: maxConns,
		now:      time.Now,
	}
}

var _ interfaces.PostStore = (*Database)(nil)

func (db *Database) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(db.dsn)
	if err != nil {
		return &interfaces.DatabaseError{Op: "parse dsn", Err: err}
	}
	if db.maxConns > 0 {
		cfg.MaxConns = db.maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return &interfaces.DatabaseError{Op: "connect", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &interfaces.DatabaseError{Op: "ping", Err: err}
	}
	db.pool = pool
	return nil
}

func (db *Database) Disconnect(ctx context.Context) error {
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	if db.pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}
	return db.pool.Ping(ctx)
}

// Migrate applies the embedded goose migrations
func (db *Database) Migrate(ctx context.Context) error {
	if db.pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	if err := migrations.Run(ctx, sqlDB, "up"); err != nil {
		return &interfaces.DatabaseError{Op: "migrate", Err: err}
	}
	return nil
}

func (db *Database) Save(ctx context.Context, post *entities.Post) (*entities.Post, error) {
	validate := post.Validate
	if post.ID != 0 {
		validate = post.ValidateContent
	}
	if err := validate(); err != nil {
		return nil, err
	}
	if db.pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	if post.ID == 0 {
		return db.insert(ctx, post)
	}
	return db.update(ctx, post)
}

func (db *Database) insert(ctx context.Context, post *entities.Post) (*entities.Post, error) {
	record := entities.Post{Title: post.Title, Content: post.Content, Author: post.Author}
	record.MarkCreated(db.now())

	rows, err := db.pool.Query(ctx, `
		INSERT INTO boards (title, content, author, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+postColumns,
		record.Title, record.Content, record.Author, record.CreatedAt,
	)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "insert post", Err: err}
	}
	saved, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[entities.Post])
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "insert post", Err: err}
	}
	return saved, nil
}

// update never touches author or created_at. GREATEST keeps updated_at strictly
// increasing even if this node's clock trails the one that wrote the row.
func (db *Database) update(ctx context.Context, post *entities.Post) (*entities.Post, error) {
	now := db.now().UTC().Truncate(entities.TimestampPrecision)

	rows, err := db.pool.Query(ctx, `
		UPDATE boards
		SET title = $2,
		    content = $3,
		    updated_at = GREATEST($4, updated_at + interval '1 microsecond')
		WHERE id = $1
		RETURNING `+postColumns,
		post.ID, post.Title, post.Content, now,
	)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "update post", Err: err}
	}
	saved, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[entities.Post])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, &interfaces.DatabaseError{Op: "update post", Err: err}
	}
	return saved, nil
}

func (db *Database) FindByID(ctx context.Context, id int64) (*entities.Post, error) {
	if db.pool == nil {
		return nil, interfaces.ErrDatabaseNotConnected
	}

	rows, err := db.pool.Query(ctx, `SELECT `+postColumns+` FROM boards WHERE id = $1`, id)
	if err != nil {
		return nil, &interfaces.DatabaseError{Op: "find post", Err: err}
	}
	post, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[entities.Post])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, &interfaces.DatabaseError{Op: "find post", Err: err}
	}
	return post, nil
}

func (db *Database) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if db.pool == nil {
		return false, interfaces.ErrDatabaseNotConnected
	}

	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM boards WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, &interfaces.DatabaseError{Op: "exists post", Err: err}
	}
	return exists, nil
}

func (db *Database) DeleteByID(ctx context.Context, id int64) error {
	if db.pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	tag, err := db.pool.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return &interfaces.DatabaseError{Op: "delete post", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (db *Database) FindAllPaged(ctx context.Context, page interfaces.PageRequest) ([]*entities.Post, int64, error) {
	if err := page.Validate(); err != nil {
		return nil, 0, err
	}
	if db.pool == nil {
		return nil, 0, interfaces.ErrDatabaseNotConnected
	}

	var total int64
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM boards`).Scan(&total); err != nil {
		return nil, 0, &interfaces.DatabaseError{Op: "count posts", Err: err}
	}
	if int64(page.Offset()) >= total {
		return []*entities.Post{}, total, nil
	}

	// page.Sort is validated above, so only asc/desc reach the query text.
	dir := "DESC"
	if page.Sort == interfaces.SortAsc {
		dir = "ASC"
	}
	query := fmt.Sprintf(
		`SELECT %s FROM boards ORDER BY created_at %s, id %s LIMIT $1 OFFSET $2`,
		postColumns, dir, dir,
	)

	rows, err := db.pool.Query(ctx, query, page.Size, page.Offset())
	if err != nil {
		return nil, 0, &interfaces.DatabaseError{Op: "list posts", Err: err}
	}
	posts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[entities.Post])
	if err != nil {
		return nil, 0, &interfaces.DatabaseError{Op: "list posts", Err: err}
	}
	return posts, total, nil
}
