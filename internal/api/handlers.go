package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/noticeboard/board-backend/internal/board"
	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/jobs"
	"github.com/noticeboard/board-backend/internal/search"
	"go.uber.org/zap"
)

// BoardService is the write and lookup path for posts
type BoardService interface {
	Create(ctx context.Context, req board.CreatePostRequest) (board.PostSummary, error)
	Get(ctx context.Context, id int64) (board.PostSummary, error)
	Update(ctx context.Context, id int64, req board.UpdatePostRequest) (board.PostSummary, error)
	Delete(ctx context.Context, id int64) error
}

// PostQuerier answers list and search requests
type PostQuerier interface {
	Route(ctx context.Context, req board.ListRequest) (board.PageResponse, board.Source, error)
}

// SyncRunner exposes the index sync worker to the admin endpoints
type SyncRunner interface {
	RunOnce(ctx context.Context) jobs.SyncResult
	LastResult() (jobs.SyncResult, bool)
	Runs() uint64
	QueueLen() int
	QueueDropped() uint64
}

// Pinger is any dependency /readyz should check
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

// maxBodyBytes bounds request bodies; post content itself is unbounded
// by the model but a single request is not.
const maxBodyBytes = 4 << 20

type Handler struct {
	posts   BoardService
	queries PostQuerier
	sync    SyncRunner
	checks  map[string]Pinger
	logger  *zap.SugaredLogger
}

func NewHandler(
	posts BoardService,
	queries PostQuerier,
	sync SyncRunner,
	checks map[string]Pinger,
	logger *zap.SugaredLogger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		posts:   posts,
		queries: queries,
		sync:    sync,
		checks:  checks,
		logger:  logger,
	}
}

// Board endpoints
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
		return
	}

	page, source, err := h.queries.Route(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set(SourceHeader, string(source))
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req board.CreatePostRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	post, err := h.posts.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/boards/%d", post.ID))
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	var req board.UpdatePostRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	post, err := h.posts.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := h.postID(w, r)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin endpoints
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.sync.RunOnce(r.Context())
	h.logger.Infow("Manual index sync finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	dto := SyncStatusDTO{
		QueueDepth:   h.sync.QueueLen(),
		QueueDropped: h.sync.QueueDropped(),
		Runs:         h.sync.Runs(),
	}
	if last, ok := h.sync.LastResult(); ok {
		dto.LastRun = &last
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// Health endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	dto := HealthDTO{Status: "ready", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Warnw("Readiness check failed", "check", name, "error", err)
			dto.Checks[name] = err.Error()
			dto.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		dto.Checks[name] = "ok"
	}

	h.writeJSON(w, status, dto)
}

// parseListRequest reads page, size, sort, keyword and searchType. Absent
// parameters keep their defaults.
func parseListRequest(r *http.Request) (board.ListRequest, error) {
	q := r.URL.Query()
	req := board.DefaultListRequest()

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: page must be an integer", board.ErrInvalidQuery)
		}
		req.Page = page
	}
	if v := q.Get("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: size must be an integer", board.ErrInvalidQuery)
		}
		req.Size = size
	}
	if v := q.Get("sort"); v != "" {
		dir, err := board.ParseSort(v)
		if err != nil {
			return req, err
		}
		req.Sort = dir
	}
	if v := q.Get("searchType"); v != "" {
		st, err := search.ParseSearchType(v)
		if err != nil {
			return req, fmt.Errorf("%w: %v", board.ErrInvalidQuery, err)
		}
		req.SearchType = st
	}
	req.Keyword = q.Get("keyword")

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, CodeInvalidID, fmt.Sprintf("invalid post id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		h.writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, entities.ErrInvalidPost):
		h.writeError(w, http.StatusBadRequest, CodeInvalidPost, err.Error())
	case errors.Is(err, board.ErrInvalidQuery), errors.Is(err, search.ErrInvalidSearchType):
		h.writeError(w, http.StatusBadRequest, CodeInvalidQuery, err.Error())
	case board.IsQueryError(err):
		h.writeError(w, http.StatusInternalServerError, CodeQueryFailed, "query failed")
		h.logger.Errorw("Query failed", "error", err)
	default:
		h.writeError(w, http.StatusInternalServerError, CodeInternalError, http.StatusText(http.StatusInternalServerError))
		h.logger.Errorw("Request failed", "error", err)
	}
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status < http.StatusInternalServerError {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: strings.TrimSpace(message),
	})
}
