// Package mongoindex implements the search index as a MongoDB collection.
// Analyzed terms are stored next to each document as arrays. A tokenized
// match is an unanchored $regex over the array, which Mongo applies per
// element, so a keyword fragment matches inside any single term. An author
// match is plain equality.
package mongoindex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
)

const defaultDatabase = "board"

type record struct {
	ID           int64     `bson:"_id"`
	Title        string    `bson:"title"`
	Content      string    `bson:"content"`
	Author       string    `bson:"author"`
	TitleTerms   []string  `bson:"title_terms"`
	ContentTerms []string  `bson:"content_terms"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toRecord(doc search.Document) record {
	return record{
		ID:           doc.ID,
		Title:        doc.Title,
		Content:      doc.Content,
		Author:       doc.Author,
		TitleTerms:   search.Analyze(doc.Title),
		ContentTerms: search.Analyze(doc.Content),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func (r record) document() search.Document {
	return search.Document{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Author:    r.Author,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// Index is a search.Index stored in one MongoDB collection
type Index struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ search.Index = (*Index)(nil)

// Connect dials MongoDB and verifies the connection
func Connect(ctx context.Context, uri, database, collection string) (*Index, error) {
	if uri == "" {
		return nil, errors.New("mongo URI is required")
	}
	if database == "" {
		database = defaultDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return New(client, database, collection), nil
}

// New wraps an existing client
func New(client *mongo.Client, database, collection string) *Index {
	if collection == "" {
		collection = search.DefaultIndexName
	}
	return &Index{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
}

func (i *Index) EnsureIndex(ctx context.Context) error {
	_, err := i.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title_terms", Value: 1}}},
		{Keys: bson.D{{Key: "content_terms", Value: 1}}},
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
	})
	return err
}

func (i *Index) Reset(ctx context.Context) error {
	if err := i.collection.Drop(ctx); err != nil {
		return err
	}
	return i.EnsureIndex(ctx)
}

func (i *Index) Upsert(ctx context.Context, doc search.Document) error {
	_, err := i.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		toRecord(doc),
		options.Replace().SetUpsert(true),
	)
	return err
}

func (i *Index) DeleteByID(ctx context.Context, id int64) error {
	_, err := i.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// termsFilter matches documents where some element of field contains one of
// the query terms
func termsFilter(field string, terms []string) bson.M {
	quoted := make([]string, len(terms))
	for n, t := range terms {
		quoted[n] = regexp.QuoteMeta(t)
	}
	return bson.M{field: bson.M{"$regex": strings.Join(quoted, "|")}}
}

func (i *Index) FindByTitleContaining(ctx context.Context, q search.Query) (search.Result, error) {
	terms := search.Analyze(q.Keyword)
	return i.find(ctx, q.Page, len(terms) > 0, termsFilter("title_terms", terms))
}

func (i *Index) FindByContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	terms := search.Analyze(q.Keyword)
	return i.find(ctx, q.Page, len(terms) > 0, termsFilter("content_terms", terms))
}

func (i *Index) FindByTitleOrContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	terms := search.Analyze(q.Keyword)
	return i.find(ctx, q.Page, len(terms) > 0, bson.M{"$or": bson.A{
		termsFilter("title_terms", terms),
		termsFilter("content_terms", terms),
	}})
}

func (i *Index) FindByAuthor(ctx context.Context, q search.Query) (search.Result, error) {
	return i.find(ctx, q.Page, true, bson.M{"author": q.Keyword})
}

func (i *Index) find(ctx context.Context, page interfaces.PageRequest, anyTerms bool, filter bson.M) (search.Result, error) {
	if err := page.Validate(); err != nil {
		return search.Result{}, err
	}
	empty := search.Result{Documents: []search.Document{}}
	if !anyTerms {
		return empty, nil
	}

	total, err := i.collection.CountDocuments(ctx, filter)
	if err != nil {
		return search.Result{}, err
	}
	empty.Total = total
	if int64(page.Offset()) >= total {
		return empty, nil
	}

	dir := -1
	if page.Sort == interfaces.SortAsc {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))

	cursor, err := i.collection.Find(ctx, filter, opts)
	if err != nil {
		return search.Result{}, err
	}
	defer cursor.Close(ctx)

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return search.Result{}, err
	}

	docs := make([]search.Document, len(records))
	for n, r := range records {
		docs[n] = r.document()
	}
	return search.Result{Documents: docs, Total: total}, nil
}

func (i *Index) Ping(ctx context.Context) error {
	return i.client.Ping(ctx, readpref.Primary())
}

func (i *Index) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return i.client.Disconnect(ctx)
}

func init() {
	search.RegisterBackend(search.BackendMongo, func(ctx context.Context, cfg search.Config) (search.Index, error) {
		return Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.IndexName)
	})
}
