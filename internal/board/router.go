package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/metrics"
	"github.com/noticeboard/board-backend/internal/search"
)

// PostLister is the paged listing of the post store
type PostLister interface {
	FindAllPaged(ctx context.Context, page interfaces.PageRequest) ([]*entities.Post, int64, error)
}

// QueryRouter serves list requests from the post store and keyword
// requests from the search index, in one response shape.
type QueryRouter struct {
	posts   PostLister
	index   search.Index
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics

	// identical concurrent queries share one backend call
	group        singleflight.Group
	queryTimeout time.Duration
}

// DefaultQueryTimeout bounds one shared backend read
const DefaultQueryTimeout = 15 * time.Second

func NewQueryRouter(posts PostLister, index search.Index, logger *zap.SugaredLogger, m *metrics.Metrics) *QueryRouter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &QueryRouter{
		posts:        posts,
		index:        index,
		logger:       logger.Named("query-router"),
		metrics:      m,
		queryTimeout: DefaultQueryTimeout,
	}
}

type routed struct {
	page   PageResponse
	source Source
}

// Route answers one list request. Without a keyword it reads the post store;
// with one it searches the index using the trimmed keyword.
func (r *QueryRouter) Route(ctx context.Context, req ListRequest) (PageResponse, Source, error) {
	if err := req.Validate(); err != nil {
		return PageResponse{}, "", err
	}
	req.Keyword = strings.TrimSpace(req.Keyword)

	key := fmt.Sprintf("%d|%d|%s|%s|%s", req.Page, req.Size, req.Sort, req.SearchType, req.Keyword)
	// The shared call outlives any single caller, so it must not inherit the
	// first caller's cancellation. Each caller still stops waiting on its own.
	ch := r.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryTimeout)
		defer cancel()

		if req.Keyword == "" {
			page, err := r.fromStore(shared, req)
			return routed{page: page, source: SourceStore}, err
		}
		page, err := r.fromIndex(shared, req)
		return routed{page: page, source: SourceIndex}, err
	})

	select {
	case <-ctx.Done():
		return PageResponse{}, "", ctx.Err()
	case out := <-ch:
		res, _ := out.Val.(routed)
		if out.Err != nil {
			return PageResponse{}, res.source, out.Err
		}
		return res.page, res.source, nil
	}
}

func (r *QueryRouter) fromStore(ctx context.Context, req ListRequest) (PageResponse, error) {
	started := time.Now()
	posts, total, err := r.posts.FindAllPaged(ctx, req.pageRequest())
	r.metrics.RecordQuery(ctx, string(SourceStore), "", err != nil, time.Since(started))
	if err != nil {
		return PageResponse{}, r.queryFailed(SourceStore, req, err)
	}

	content := make([]PostSummary, len(posts))
	for i, p := range posts {
		content[i] = FromPost(p)
	}
	return NewPageResponse(content, req.Page, req.Size, total), nil
}

func (r *QueryRouter) fromIndex(ctx context.Context, req ListRequest) (PageResponse, error) {
	started := time.Now()
	result, err := search.Find(ctx, r.index, req.SearchType, search.Query{
		Keyword: req.Keyword,
		Page:    req.pageRequest(),
	})
	r.metrics.RecordQuery(ctx, string(SourceIndex), string(req.SearchType), err != nil, time.Since(started))
	if err != nil {
		return PageResponse{}, r.queryFailed(SourceIndex, req, err)
	}

	content := make([]PostSummary, len(result.Documents))
	for i, d := range result.Documents {
		content[i] = FromSearchDocument(d)
	}
	return NewPageResponse(content, req.Page, req.Size, result.Total), nil
}

func (r *QueryRouter) queryFailed(source Source, req ListRequest, err error) error {
	if errors.Is(err, ErrInvalidQuery) {
		return err
	}
	r.logger.Errorw("Query failed",
		"source", source,
		"search_type", req.SearchType,
		"page", req.Page,
		"size", req.Size,
		"error", err,
	)
	return &QueryError{Source: source, Err: err}
}
