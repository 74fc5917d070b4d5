package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/search"
)

// PostPager pages through the post store
type PostPager interface {
	FindAllPaged(ctx context.Context, page interfaces.PageRequest) ([]*entities.Post, int64, error)
}

// RebuildResult summarizes a full index rebuild
type RebuildResult struct {
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"durationNs"`
}

// IndexRebuilder repopulates the search index from the post store. It is the
// only repair path for drift left behind by lost sync events.
type IndexRebuilder struct {
	posts     PostPager
	index     search.Index
	logger    *zap.SugaredLogger
	pageSize  int
	opTimeout time.Duration
}

func NewIndexRebuilder(posts PostPager, index search.Index, logger *zap.SugaredLogger, opTimeout time.Duration) *IndexRebuilder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opTimeout <= 0 {
		opTimeout = DefaultIndexSyncConfig().OpTimeout
	}
	return &IndexRebuilder{
		posts:     posts,
		index:     index,
		logger:    logger.Named("index-rebuild"),
		pageSize:  200,
		opTimeout: opTimeout,
	}
}

// Rebuild resets the index and upserts every post, oldest first. Per-post
// failures are counted and skipped; reset and paging failures abort.
func (r *IndexRebuilder) Rebuild(ctx context.Context) (RebuildResult, error) {
	started := time.Now()
	var result RebuildResult

	if err := r.index.Reset(ctx); err != nil {
		return result, fmt.Errorf("reset index: %w", err)
	}

	page := interfaces.PageRequest{Page: 0, Size: r.pageSize, Sort: interfaces.SortAsc}
	for {
		posts, total, err := r.posts.FindAllPaged(ctx, page)
		if err != nil {
			return result, fmt.Errorf("read posts page %d: %w", page.Page, err)
		}

		for _, post := range posts {
			opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
			err := r.index.Upsert(opCtx, search.FromPost(post))
			cancel()
			if err != nil {
				result.Failed++
				r.logger.Warnw("Failed to index post during rebuild", "post_id", post.ID, "error", err)
				continue
			}
			result.Indexed++
		}

		if len(posts) == 0 || int64(page.Offset()+len(posts)) >= total {
			break
		}
		page.Page++
	}

	result.Duration = time.Since(started)
	r.logger.Infow("Search index rebuilt",
		"indexed", result.Indexed,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}
