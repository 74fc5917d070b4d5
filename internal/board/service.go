package board

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/indexsync"
)

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
}

// UpdatePostRequest carries the mutable fields; author never changes
type UpdatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Service is the write path. Each mutation commits to the post store first
// and only then enqueues its sync event, so a failed write never reaches
// the index.
type Service struct {
	store  interfaces.PostStore
	queue  *indexsync.Queue
	logger *zap.SugaredLogger
}

func NewService(store interfaces.PostStore, queue *indexsync.Queue, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, queue: queue, logger: logger.Named("board")}
}

func (s *Service) Create(ctx context.Context, req CreatePostRequest) (PostSummary, error) {
	post, err := s.store.Save(ctx, &entities.Post{
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
		Author:  strings.TrimSpace(req.Author),
	})
	if err != nil {
		return PostSummary{}, err
	}

	s.queue.Enqueue(indexsync.NewEvent(post.ID, indexsync.EventCreate))
	s.logger.Debugw("Post created", "post_id", post.ID)
	return FromPost(post), nil
}

func (s *Service) Get(ctx context.Context, id int64) (PostSummary, error) {
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return PostSummary{}, err
	}
	return FromPost(post), nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdatePostRequest) (PostSummary, error) {
	post, err := s.store.FindByID(ctx, id)
	if err != nil {
		return PostSummary{}, err
	}

	post.Title = strings.TrimSpace(req.Title)
	post.Content = req.Content
	saved, err := s.store.Save(ctx, post)
	if err != nil {
		return PostSummary{}, err
	}

	s.queue.Enqueue(indexsync.NewEvent(saved.ID, indexsync.EventUpdate))
	s.logger.Debugw("Post updated", "post_id", saved.ID)
	return FromPost(saved), nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.queue.Enqueue(indexsync.NewEvent(id, indexsync.EventDelete))
	s.logger.Debugw("Post deleted", "post_id", id)
	return nil
}

// Seed creates fixtures through the write path so they reach the index too
func (s *Service) Seed(ctx context.Context, posts []entities.Post) (int, error) {
	for i, p := range posts {
		if _, err := s.Create(ctx, CreatePostRequest{Title: p.Title, Content: p.Content, Author: p.Author}); err != nil {
			return i, err
		}
	}
	return len(posts), nil
}
