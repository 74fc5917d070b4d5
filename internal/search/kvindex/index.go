// Package kvindex implements the search index as an inverted index on top of
// a kv.Store. Documents are CBOR-encoded in one hash; every analyzed term of
// a title or content, and every exact author, has a set of document ids.
// Each tokenized field also keeps a set of all its terms, scanned at query
// time to find the terms a keyword occurs in.
package kvindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/noticeboard/board-backend/internal/search"
	"github.com/noticeboard/board-backend/pkg/kv"
)

const schemaVersion = 1

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
}

type meta struct {
	Version   int       `cbor:"version"`
	CreatedAt time.Time `cbor:"created_at"`
}

// Index is a search.Index backed by a kv.Store
type Index struct {
	store  kv.Store
	prefix string
}

var _ search.Index = (*Index)(nil)

// New creates an index whose keys all start with "brd:idx:<name>:"
func New(store kv.Store, name string) *Index {
	if name == "" {
		name = search.DefaultIndexName
	}
	return &Index{store: store, prefix: "brd:idx:" + name + ":"}
}

func (i *Index) docsKey() string     { return i.prefix + "docs" }
func (i *Index) metaKey() string     { return i.prefix + "meta" }
func (i *Index) registryKey() string { return i.prefix + "keys" }

// termsKey is the set of every term ever indexed for a field. Terms are not
// pruned when their postings empty; an empty posting set just matches nothing
// and Reset clears the lot.
func (i *Index) termsKey(field string) string { return i.prefix + "terms:" + field }

var tokenizedFields = []string{"title", "content"}

func (i *Index) postingKey(field, term string) string {
	return i.prefix + field + ":" + term
}

// postingKeys lists every posting set a document belongs to
func (i *Index) postingKeys(doc search.Document) []string {
	var keys []string
	for _, t := range search.Analyze(doc.Title) {
		keys = append(keys, i.postingKey("title", t))
	}
	for _, t := range search.Analyze(doc.Content) {
		keys = append(keys, i.postingKey("content", t))
	}
	keys = append(keys, i.postingKey("author", doc.Author))
	return keys
}

func idField(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (i *Index) EnsureIndex(ctx context.Context) error {
	n, err := i.store.Exists(ctx, i.metaKey())
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	data, err := encMode.Marshal(meta{Version: schemaVersion, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return i.store.Set(ctx, i.metaKey(), data)
}

// SchemaVersion reads the version stamped by EnsureIndex
func (i *Index) SchemaVersion(ctx context.Context) (int, error) {
	data, err := i.store.Get(ctx, i.metaKey())
	if err != nil {
		return 0, err
	}
	var m meta
	if err := cbor.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("decode index meta: %w", err)
	}
	return m.Version, nil
}

func (i *Index) Reset(ctx context.Context) error {
	members, err := i.store.SMembers(ctx, i.registryKey())
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(members)+3+len(tokenizedFields))
	for _, m := range members {
		keys = append(keys, string(m))
	}
	for _, f := range tokenizedFields {
		keys = append(keys, i.termsKey(f))
	}
	keys = append(keys, i.docsKey(), i.registryKey(), i.metaKey())
	if _, err := i.store.Del(ctx, keys...); err != nil {
		return err
	}
	return i.EnsureIndex(ctx)
}

func (i *Index) load(ctx context.Context, id int64) (*search.Document, error) {
	data, err := i.store.HGet(ctx, i.docsKey(), idField(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc search.Document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %d: %w", id, err)
	}
	return &doc, nil
}

func (i *Index) unlink(ctx context.Context, doc *search.Document) error {
	member := []byte(idField(doc.ID))
	for _, key := range i.postingKeys(*doc) {
		if _, err := i.store.SRem(ctx, key, member); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) Upsert(ctx context.Context, doc search.Document) error {
	data, err := encMode.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %d: %w", doc.ID, err)
	}

	old, err := i.load(ctx, doc.ID)
	if err != nil {
		return err
	}
	if old != nil {
		if err := i.unlink(ctx, old); err != nil {
			return err
		}
	}

	member := []byte(idField(doc.ID))
	for _, key := range i.postingKeys(doc) {
		if _, err := i.store.SAdd(ctx, key, member); err != nil {
			return err
		}
		if _, err := i.store.SAdd(ctx, i.registryKey(), []byte(key)); err != nil {
			return err
		}
	}
	if err := i.registerTerms(ctx, "title", doc.Title); err != nil {
		return err
	}
	if err := i.registerTerms(ctx, "content", doc.Content); err != nil {
		return err
	}
	return i.store.HSet(ctx, i.docsKey(), idField(doc.ID), data)
}

func (i *Index) registerTerms(ctx context.Context, field, text string) error {
	terms := search.Analyze(text)
	if len(terms) == 0 {
		return nil
	}
	members := make([][]byte, len(terms))
	for n, t := range terms {
		members[n] = []byte(t)
	}
	_, err := i.store.SAdd(ctx, i.termsKey(field), members...)
	return err
}

func (i *Index) DeleteByID(ctx context.Context, id int64) error {
	old, err := i.load(ctx, id)
	if err != nil || old == nil {
		return err
	}
	if _, err := i.store.HDel(ctx, i.docsKey(), idField(id)); err != nil {
		return err
	}
	return i.unlink(ctx, old)
}

// Count returns the number of indexed documents
func (i *Index) Count(ctx context.Context) (int64, error) {
	return i.store.HLen(ctx, i.docsKey())
}

func (i *Index) FindByTitleContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.findTerms(ctx, q, "title")
}

func (i *Index) FindByContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.findTerms(ctx, q, "content")
}

func (i *Index) FindByTitleOrContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.findTerms(ctx, q, "title", "content")
}

func (i *Index) FindByAuthor(ctx context.Context, q search.Query) (search.Result, error) {
	if err := q.Page.Validate(); err != nil {
		return search.Result{}, err
	}
	return i.collect(ctx, q, []string{i.postingKey("author", q.Keyword)})
}

func (i *Index) findTerms(ctx context.Context, q search.Query, fields ...string) (search.Result, error) {
	if err := q.Page.Validate(); err != nil {
		return search.Result{}, err
	}

	queryTerms := search.Analyze(q.Keyword)
	if len(queryTerms) == 0 {
		return search.Result{Documents: []search.Document{}}, nil
	}

	var keys []string
	for _, f := range fields {
		indexed, err := i.store.SMembers(ctx, i.termsKey(f))
		if err != nil {
			return search.Result{}, err
		}
		for _, m := range indexed {
			term := string(m)
			for _, qt := range queryTerms {
				if search.TermContains(term, qt) {
					keys = append(keys, i.postingKey(f, term))
					break
				}
			}
		}
	}
	return i.collect(ctx, q, keys)
}

// collect unions the posting sets, loads the documents and pages them
func (i *Index) collect(ctx context.Context, q search.Query, keys []string) (search.Result, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, key := range keys {
		members, err := i.store.SMembers(ctx, key)
		if err != nil {
			return search.Result{}, err
		}
		for _, m := range members {
			id := string(m)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return search.Result{Documents: []search.Document{}}, nil
	}

	values, err := i.store.HMGet(ctx, i.docsKey(), ids...)
	if err != nil {
		return search.Result{}, err
	}

	matches := make([]search.Document, 0, len(values))
	for n, data := range values {
		// posting without a document: a concurrent delete got there first
		if data == nil {
			continue
		}
		var doc search.Document
		if err := cbor.Unmarshal(data, &doc); err != nil {
			return search.Result{}, fmt.Errorf("decode document %s: %w", ids[n], err)
		}
		matches = append(matches, doc)
	}
	return search.PageOf(matches, q.Page), nil
}

func (i *Index) Ping(ctx context.Context) error {
	return i.store.Ping(ctx)
}

func (i *Index) Close() error {
	return i.store.Close()
}
