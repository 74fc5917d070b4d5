package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noticeboard/board-backend/internal/db/entities"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/indexsync"
	"github.com/noticeboard/board-backend/internal/metrics"
	"github.com/noticeboard/board-backend/internal/search"
)

// ErrPostVanished marks a CREATE or UPDATE whose post was deleted before the
// event was applied. No tombstone is written; the DELETE event that follows
// removes the document.
var ErrPostVanished = errors.New("post no longer exists")

// ErrWriteStillRunning fails an event whose post still has an abandoned
// index write in flight. Index writes are not atomic, so a second write for
// the same post must not interleave with the first.
var ErrWriteStillRunning = errors.New("previous index write still running")

// PostReader is the part of the post store the worker re-reads from
type PostReader interface {
	FindByID(ctx context.Context, id int64) (*entities.Post, error)
}

// IndexWriter is the part of the search index the worker writes to
type IndexWriter interface {
	Upsert(ctx context.Context, doc search.Document) error
	DeleteByID(ctx context.Context, id int64) error
}

type IndexSyncConfig struct {
	Interval  time.Duration // time between run starts
	OpTimeout time.Duration // bound on each post store or index call
}

func DefaultIndexSyncConfig() IndexSyncConfig {
	return IndexSyncConfig{Interval: 30 * time.Second, OpTimeout: 5 * time.Second}
}

// SyncResult summarizes one worker run
type SyncResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
}

// IndexSyncWorker drains the sync queue on a fixed schedule and mirrors each
// change into the search index. Delivery is at most once: a drained event
// that fails to apply is logged and counted, never requeued.
type IndexSyncWorker struct {
	queue   *indexsync.Queue
	posts   PostReader
	index   IndexWriter
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	config  IndexSyncConfig

	// runMu keeps runs from overlapping, whether scheduled or explicit
	runMu sync.Mutex

	mu        sync.RWMutex
	last      *SyncResult
	runs      uint64
	cancelCtx context.CancelFunc
	done      chan struct{}

	// abandoned index writes by post id, closed once the write returns
	pendingMu sync.Mutex
	pending   map[int64]<-chan struct{}
}

func NewIndexSyncWorker(queue *indexsync.Queue, posts PostReader, index IndexWriter, logger *zap.SugaredLogger, m *metrics.Metrics, config IndexSyncConfig) *IndexSyncWorker {
	defaults := DefaultIndexSyncConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = defaults.OpTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &IndexSyncWorker{
		queue:   queue,
		posts:   posts,
		index:   index,
		logger:  logger.Named("index-sync"),
		metrics: m,
		config:  config,
		pending: make(map[int64]<-chan struct{}),
	}
}

// Start runs the worker until ctx is cancelled or Stop is called. Runs are
// scheduled relative to the previous start; a run that overruns the interval
// is followed immediately by the next one, never concurrently.
func (w *IndexSyncWorker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.cancelCtx = cancel
	w.done = done
	w.mu.Unlock()
	defer close(done)

	w.logger.Infow("Starting index sync worker",
		"interval", w.config.Interval,
		"op_timeout", w.config.OpTimeout,
		"queue_capacity", w.queue.Capacity(),
	)

	next := time.Now().Add(w.config.Interval)
	timer := time.NewTimer(w.config.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infow("Index sync worker stopping", "pending", w.queue.Len())
			return ctx.Err()
		case <-timer.C:
		}

		started := time.Now()
		w.RunOnce(ctx)

		next = next.Add(w.config.Interval)
		if next.Before(started) {
			// we fell behind by whole intervals; schedule from this start
			next = started.Add(w.config.Interval)
		}
		timer.Reset(time.Until(next))
	}
}

// Stop cancels a running Start and waits for the in-flight run to finish
func (w *IndexSyncWorker) Stop() {
	w.mu.RLock()
	cancel, done := w.cancelCtx, w.done
	w.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce drains the queue and applies every event in order. An empty queue
// is a no-op. Cancelling ctx does not abandon a drained batch; each call
// still gets its own OpTimeout.
func (w *IndexSyncWorker) RunOnce(ctx context.Context) SyncResult {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	result := SyncResult{StartedAt: time.Now().UTC()}
	if w.queue.IsEmpty() {
		return result
	}

	batch := w.queue.DrainAll()
	opCtx := context.WithoutCancel(ctx)

	for _, event := range batch {
		result.Processed++
		if err := w.apply(opCtx, event); err != nil {
			result.Failed++
			w.metrics.RecordSyncEvent(ctx, string(event.Kind), "failure")
			w.logger.Warnw("Failed to sync event to search index",
				"post_id", event.PostID,
				"kind", event.Kind,
				"enqueued_at", event.Timestamp,
				"error", err,
			)
			continue
		}
		result.Succeeded++
		w.metrics.RecordSyncEvent(ctx, string(event.Kind), "success")
	}
	result.Duration = time.Since(result.StartedAt)

	w.metrics.RecordSyncRun(ctx, len(batch), result.Duration)
	w.logger.Infow("Index sync run complete",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration", result.Duration,
	)

	w.mu.Lock()
	w.last = &result
	w.runs++
	w.mu.Unlock()

	return result
}

// apply handles one event; a panic is reported as that event's failure
func (w *IndexSyncWorker) apply(ctx context.Context, event indexsync.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic applying %s: %v", event, r)
		}
	}()

	switch event.Kind {
	case indexsync.EventCreate, indexsync.EventUpdate:
		post, err := w.findPost(ctx, event.PostID)
		if err != nil {
			return err
		}
		return w.indexWrite(ctx, event.PostID, func(ctx context.Context) error {
			return w.index.Upsert(ctx, search.FromPost(post))
		})
	case indexsync.EventDelete:
		return w.indexWrite(ctx, event.PostID, func(ctx context.Context) error {
			return w.index.DeleteByID(ctx, event.PostID)
		})
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

func (w *IndexSyncWorker) findPost(ctx context.Context, id int64) (*entities.Post, error) {
	var post *entities.Post
	err := w.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		post, err = w.posts.FindByID(ctx, id)
		return err
	})
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrPostVanished, id)
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// withTimeout bounds fn by OpTimeout even when fn ignores its context.
// A call that outlives the timeout is abandoned and left to finish on its own.
func (w *IndexSyncWorker) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	_, err := w.bounded(ctx, fn)
	return err
}

// bounded runs fn under OpTimeout. When fn is abandoned it returns a channel
// that is closed once fn finally returns; otherwise the channel is nil.
func (w *IndexSyncWorker) bounded(ctx context.Context, fn func(context.Context) error) (<-chan struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.OpTimeout)
	defer cancel()

	errc := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("panic: %v", r)
			}
		}()
		errc <- fn(ctx)
	}()

	select {
	case err := <-errc:
		return nil, err
	case <-ctx.Done():
		return finished, fmt.Errorf("timed out after %s: %w", w.config.OpTimeout, ctx.Err())
	}
}

// indexWrite runs one index write for a post. It first waits, up to
// OpTimeout, for any abandoned write to the same post, so two writes for one
// document never interleave; if that write is still running the event fails.
func (w *IndexSyncWorker) indexWrite(ctx context.Context, id int64, fn func(context.Context) error) error {
	if err := w.awaitAbandoned(id); err != nil {
		return err
	}

	abandoned, err := w.bounded(ctx, fn)
	if abandoned != nil {
		w.pendingMu.Lock()
		w.pending[id] = abandoned
		w.pendingMu.Unlock()

		go func() {
			<-abandoned
			w.pendingMu.Lock()
			if w.pending[id] == abandoned {
				delete(w.pending, id)
			}
			w.pendingMu.Unlock()
		}()
	}
	return err
}

func (w *IndexSyncWorker) awaitAbandoned(id int64) error {
	w.pendingMu.Lock()
	running := w.pending[id]
	w.pendingMu.Unlock()
	if running == nil {
		return nil
	}

	timer := time.NewTimer(w.config.OpTimeout)
	defer timer.Stop()
	select {
	case <-running:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: post %d", ErrWriteStillRunning, id)
	}
}

// abandonedWrites counts index writes still running past their timeout
func (w *IndexSyncWorker) abandonedWrites() int {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return len(w.pending)
}

// LastResult returns the last run that processed events, if any
func (w *IndexSyncWorker) LastResult() (SyncResult, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return SyncResult{}, false
	}
	return *w.last, true
}

// Runs counts the runs that processed at least one event
func (w *IndexSyncWorker) Runs() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// QueueLen reports the advisory queue depth
func (w *IndexSyncWorker) QueueLen() int {
	return w.queue.Len()
}

// QueueDropped reports events evicted by a capped queue
func (w *IndexSyncWorker) QueueDropped() uint64 {
	return w.queue.Dropped()
}
