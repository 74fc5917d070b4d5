// Package elastic implements the search index on Elasticsearch. Title and
// content are text fields with the standard analyzer; author is a keyword.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
)

// maxResultWindow is the default index.max_result_window
const maxResultWindow = 10000

const mapping = `{
  "mappings": {
    "properties": {
      "id":        {"type": "long"},
      "title":     {"type": "text", "analyzer": "standard"},
      "content":   {"type": "text", "analyzer": "standard"},
      "author":    {"type": "keyword"},
      "createdAt": {"type": "date"},
      "updatedAt": {"type": "date"}
    }
  }
}`

// Index is a search.Index stored in one Elasticsearch index
type Index struct {
	es   *elasticsearch.Client
	name string
}

var _ search.Index = (*Index)(nil)

// New creates a client for the given node URLs
func New(urls []string, name string) (*Index, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one elasticsearch URL is required")
	}
	if name == "" {
		name = search.DefaultIndexName
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: urls})
	if err != nil {
		return nil, err
	}
	return &Index{es: es, name: name}, nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("elasticsearch %s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}

func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("elasticsearch exists: %s", res.Status())
	}

	res, err = i.es.Indices.Create(i.name,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (i *Index) Reset(ctx context.Context) error {
	res, err := i.es.Indices.Delete([]string{i.name},
		i.es.Indices.Delete.WithContext(ctx),
		i.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}
	return i.EnsureIndex(ctx)
}

func (i *Index) Upsert(ctx context.Context, doc search.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := i.es.Index(i.name, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(strconv.FormatInt(doc.ID, 10)),
		i.es.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index document", res)
	}
	return nil
}

func (i *Index) DeleteByID(ctx context.Context, id int64) error {
	res, err := i.es.Delete(i.name, strconv.FormatInt(id, 10),
		i.es.Delete.WithContext(ctx),
		i.es.Delete.WithRefresh("wait_for"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete document", res)
	}
	return nil
}

// containsQuery matches documents where one of the analyzed keyword terms
// occurs inside an indexed term of any of the fields. Analyzed terms are
// lowercase letters and digits only, so they need no wildcard escaping.
func containsQuery(keyword string, fields ...string) map[string]any {
	terms := search.Analyze(keyword)
	if len(terms) == 0 {
		return map[string]any{"match_none": map[string]any{}}
	}

	should := make([]any, 0, len(terms)*len(fields))
	for _, f := range fields {
		for _, t := range terms {
			should = append(should, map[string]any{
				"wildcard": map[string]any{f: map[string]any{"value": "*" + t + "*"}},
			})
		}
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

func (i *Index) FindByTitleContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.search(ctx, q.Page, containsQuery(q.Keyword, "title"))
}

func (i *Index) FindByContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.search(ctx, q.Page, containsQuery(q.Keyword, "content"))
}

func (i *Index) FindByTitleOrContentContaining(ctx context.Context, q search.Query) (search.Result, error) {
	return i.search(ctx, q.Page, containsQuery(q.Keyword, "title", "content"))
}

func (i *Index) FindByAuthor(ctx context.Context, q search.Query) (search.Result, error) {
	return i.search(ctx, q.Page, map[string]any{
		"term": map[string]any{"author": q.Keyword},
	})
}

// searchBody builds the request for one page; pages past the result
// window only ask for the total
func searchBody(query map[string]any, page interfaces.PageRequest) map[string]any {
	from := page.Offset()
	size := page.Size
	if from >= maxResultWindow {
		from, size = 0, 0
	} else if from+size > maxResultWindow {
		size = maxResultWindow - from
	}

	dir := string(page.Sort)
	return map[string]any{
		"query": query,
		"from":  from,
		"size":  size,
		"sort": []any{
			map[string]any{"createdAt": map[string]any{"order": dir}},
			map[string]any{"id": map[string]any{"order": dir}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source search.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (i *Index) search(ctx context.Context, page interfaces.PageRequest, query map[string]any) (search.Result, error) {
	if err := page.Validate(); err != nil {
		return search.Result{}, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(searchBody(query, page)); err != nil {
		return search.Result{}, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(&buf),
		i.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return search.Result{}, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return search.Result{}, responseError("search", res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return search.Result{}, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]search.Document, 0, len(parsed.Hits.Hits))
	if page.Offset() < maxResultWindow {
		for _, hit := range parsed.Hits.Hits {
			docs = append(docs, hit.Source)
		}
	}
	return search.Result{Documents: docs, Total: parsed.Hits.Total.Value}, nil
}

func (i *Index) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the client holds no resources beyond its HTTP transport
func (i *Index) Close() error {
	return nil
}

func init() {
	search.RegisterBackend(search.BackendElasticsearch, func(ctx context.Context, cfg search.Config) (search.Index, error) {
		return New(cfg.ElasticsearchURLs, cfg.IndexName)
	})
}
