package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noticeboard/board-backend/internal/board"
	"github.com/noticeboard/board-backend/internal/db/backends/memory"
	"github.com/noticeboard/board-backend/internal/indexsync"
	"github.com/noticeboard/board-backend/internal/jobs"
	"github.com/noticeboard/board-backend/internal/search"
	"github.com/noticeboard/board-backend/internal/search/kvindex"
	kvmemory "github.com/noticeboard/board-backend/pkg/kv/memory"
)

type testServer struct {
	handler http.Handler
	worker  *jobs.IndexSyncWorker
	queue   *indexsync.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memory.NewDatabase()
	require.NoError(t, store.Connect(ctx))
	index := kvindex.New(kvmemory.New(), "api")
	require.NoError(t, index.EnsureIndex(ctx))
	queue := indexsync.NewQueue()

	service := board.NewService(store, queue, nil)
	router := board.NewQueryRouter(store, index, nil, nil)
	worker := jobs.NewIndexSyncWorker(queue, store, index, nil, nil, jobs.IndexSyncConfig{})

	h := NewHandler(service, router, worker, map[string]Pinger{"posts": store, "index": index}, nil)
	return &testServer{
		handler: h.Routes(NewMiddleware(nil, nil), RouteOptions{RequestTimeout: 5 * time.Second}),
		worker:  worker,
		queue:   queue,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateGetUpdateDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: "A", Content: "B", Author: "C"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[board.PostSummary](t, rec)
	assert.Equal(t, fmt.Sprintf("/api/boards/%d", created.ID), rec.Header().Get("Location"))
	assert.Equal(t, "A", created.Title)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/boards/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[board.PostSummary](t, rec))

	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/boards/%d", created.ID), board.UpdatePostRequest{Title: "Z", Content: "B"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[board.PostSummary](t, rec)
	assert.Equal(t, "Z", updated.Title)
	assert.Equal(t, "C", updated.Author)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/boards/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/boards/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rec).Code)

	assert.Equal(t, 3, s.queue.Len())
}

func TestSearchAfterSync(t *testing.T) {
	s := newTestServer(t)

	for _, title := range []string{"Go release notes", "Rust release notes", "Weekly go meetup"} {
		rec := s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: title, Content: "body", Author: "ann"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/boards?keyword=go&searchType=title", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(board.SourceIndex), rec.Header().Get(SourceHeader))
	assert.Equal(t, int64(0), decode[board.PageResponse](t, rec).TotalElements, "index is empty before the worker runs")

	rec = s.do(t, http.MethodPost, "/api/admin/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[jobs.SyncResult](t, rec)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.Succeeded)

	rec = s.do(t, http.MethodGet, "/api/boards?keyword=go&searchType=title&sort=createdAt,asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[board.PageResponse](t, rec)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Go release notes", page.Content[0].Title)
	assert.Equal(t, "Weekly go meetup", page.Content[1].Title)

	// An unescaped "+" in the query string decodes to a space
	rec = s.do(t, http.MethodGet, "/api/boards?keyword=notes&searchType=title+content", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[board.PageResponse](t, rec).TotalElements)

	rec = s.do(t, http.MethodGet, "/api/boards?keyword=ann&searchType=author", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[board.PageResponse](t, rec).TotalElements)
}

func TestListWithoutKeywordUsesStore(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 12; i++ {
		rec := s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: fmt.Sprintf("t%d", i), Content: "c", Author: "a"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/boards?keyword=%20%20&page=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(board.SourceStore), rec.Header().Get(SourceHeader))

	page := decode[board.PageResponse](t, rec)
	assert.Equal(t, int64(12), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 10, page.Size)
	assert.Len(t, page.Content, 2)
	assert.True(t, page.Last)
}

func TestListRejectsBadParameters(t *testing.T) {
	s := newTestServer(t)

	for _, query := range []string{
		"page=-1",
		"page=abc",
		"size=0",
		"size=x",
		"sort=sideways",
		"sort=title,asc",
		"searchType=everything",
	} {
		t.Run(query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/boards?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeInvalidQuery, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestWriteValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: "", Content: "c", Author: "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidPost, decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: "t", Content: "c", Author: strings.Repeat("x", 51)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/boards", map[string]string{"title": "t", "content": "c", "author": "a", "extra": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidBody, decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPut, "/api/boards/0", board.UpdatePostRequest{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidID, decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPut, "/api/boards/99", board.UpdatePostRequest{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/boards/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.True(t, s.queue.IsEmpty(), "failed writes must not enqueue events")
}

func TestSyncStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/admin/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[SyncStatusDTO](t, rec)
	assert.Zero(t, status.QueueDepth)
	assert.Nil(t, status.LastRun)

	s.do(t, http.MethodPost, "/api/boards", board.CreatePostRequest{Title: "t", Content: "c", Author: "a"})
	rec = s.do(t, http.MethodGet, "/api/admin/sync", nil)
	assert.Equal(t, 1, decode[SyncStatusDTO](t, rec).QueueDepth)

	s.do(t, http.MethodPost, "/api/admin/sync", nil)
	rec = s.do(t, http.MethodGet, "/api/admin/sync", nil)
	status = decode[SyncStatusDTO](t, rec)
	assert.Zero(t, status.QueueDepth)
	assert.Equal(t, uint64(1), status.Runs)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 1, status.LastRun.Succeeded)
}

type mockQuerier struct {
	mock.Mock
}

func (m *mockQuerier) Route(ctx context.Context, req board.ListRequest) (board.PageResponse, board.Source, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(board.PageResponse), args.Get(1).(board.Source), args.Error(2)
}

func TestQueryFailureIs500WithoutPartialResults(t *testing.T) {
	q := &mockQuerier{}
	q.On("Route", mock.Anything, mock.MatchedBy(func(r board.ListRequest) bool {
		return r.Keyword == "boom" && r.SearchType == search.SearchContent
	})).Return(board.PageResponse{}, board.SourceIndex, &board.QueryError{Source: board.SourceIndex, Err: errors.New("connection refused")})

	logger := zap.NewNop().Sugar()
	h := NewHandler(nil, q, nil, nil, logger)
	srv := h.Routes(NewMiddleware(logger, nil), RouteOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/boards?keyword=boom&searchType=content", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, CodeQueryFailed, body.Code)
	assert.NotContains(t, rec.Body.String(), "content\":[")
	q.AssertExpectations(t)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestReadiness(t *testing.T) {
	h := NewHandler(nil, nil, nil, map[string]Pinger{"posts": stubPinger{}, "index": stubPinger{}}, nil)
	srv := h.Routes(NewMiddleware(nil, nil), RouteOptions{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[HealthDTO](t, rec).Status)

	h = NewHandler(nil, nil, nil, map[string]Pinger{"posts": stubPinger{}, "index": stubPinger{err: errors.New("down")}}, nil)
	srv = h.Routes(NewMiddleware(nil, nil), RouteOptions{})

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	dto := decode[HealthDTO](t, rec)
	assert.Equal(t, "ok", dto.Checks["posts"])
	assert.Equal(t, "down", dto.Checks["index"])
}

func TestHealthzAndMetricsMount(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	h := NewHandler(nil, nil, nil, nil, nil)
	srv := h.Routes(NewMiddleware(nil, nil), RouteOptions{MetricsHandler: metricsHandler})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}
