package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noticeboard/board-backend/internal/api"
	"github.com/noticeboard/board-backend/internal/board"
	"github.com/noticeboard/board-backend/internal/config"
	gdb "github.com/noticeboard/board-backend/internal/db"
	"github.com/noticeboard/board-backend/internal/db/interfaces"
	"github.com/noticeboard/board-backend/internal/indexsync"
	"github.com/noticeboard/board-backend/internal/jobs"
	"github.com/noticeboard/board-backend/internal/log"
	"github.com/noticeboard/board-backend/internal/metrics"
	"github.com/noticeboard/board-backend/internal/search"
	"go.uber.org/zap"

	_ "github.com/noticeboard/board-backend/internal/search/elastic"
	_ "github.com/noticeboard/board-backend/internal/search/kvindex"
	_ "github.com/noticeboard/board-backend/internal/search/mongoindex"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting board API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db_type", cfg.Database.Type,
		"search_backend", cfg.Search.Backend,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("board-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Post store
	posts, err := gdb.NewPostStore(gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Fatalw("Failed to create post store", "error", err)
	}
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	if err := gdb.ConnectAndMigrate(initCtx, posts, cfg.Database.AutoMigrate); err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer posts.Disconnect(context.Background())
	logger.Infow("Post store ready", "type", cfg.Database.Type)

	// Search index
	index, err := search.NewIndex(initCtx, search.Config{
		Backend:           search.Backend(cfg.Search.Backend),
		IndexName:         cfg.Search.IndexName,
		RedisURL:          cfg.Search.RedisURL,
		MongoURI:          cfg.Search.MongoURI,
		MongoDatabase:     cfg.Search.MongoDatabase,
		ElasticsearchURLs: cfg.Search.ElasticsearchURLs,
	})
	if err != nil {
		logger.Fatalw("Failed to create search index", "error", err, "registered", search.RegisteredBackends())
	}
	defer index.Close()
	logger.Infow("Search index ready", "backend", cfg.Search.Backend, "index", cfg.Search.IndexName)

	// Sync pipeline
	queue := indexsync.NewQueue(
		indexsync.WithCapacity(cfg.Sync.QueueCapacity),
		indexsync.WithDropHandler(func(e indexsync.Event) {
			metricsObj.RecordQueueDrop(context.Background())
			logger.Warnw("Sync queue full, dropped oldest event", "post_id", e.PostID, "kind", e.Kind)
		}),
	)
	service := board.NewService(posts, queue, logger)
	router := board.NewQueryRouter(posts, index, logger, metricsObj)
	worker := jobs.NewIndexSyncWorker(queue, posts, index, logger, metricsObj, jobs.IndexSyncConfig{
		Interval:  cfg.Sync.Interval,
		OpTimeout: cfg.Sync.OpTimeout,
	})

	if cfg.Database.Seed {
		seedPosts(initCtx, posts, service, logger)
	}
	if cfg.Sync.OnStartup {
		rebuilder := jobs.NewIndexRebuilder(posts, index, logger, cfg.Sync.OpTimeout)
		if result, err := rebuilder.Rebuild(context.Background()); err != nil {
			logger.Errorw("Startup index rebuild failed", "error", err, "indexed", result.Indexed)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go func() {
		if err := worker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Index sync worker error", "error", err)
		}
	}()

	// Setup API handler and middleware
	handler := api.NewHandler(service, router, worker, map[string]api.Pinger{
		"posts": posts,
		"index": index,
	}, logger)
	middleware := api.NewMiddleware(logger, metricsObj)
	mux := handler.Routes(middleware, api.RouteOptions{
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		RequestTimeout:     cfg.Security.RequestTimeout,
		MetricsHandler:     metricsHandler,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Security.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		// No more writes can arrive; apply whatever is still queued
		worker.Stop()
		result := worker.RunOnce(ctx)
		logger.Infow("Server stopped",
			"flushed", result.Processed,
			"flush_failed", result.Failed,
		)
	}
}

// seedPosts inserts the development fixtures into an empty store. Going
// through the service enqueues CREATE events so the index picks them up.
func seedPosts(ctx context.Context, posts interfaces.PostStore, service *board.Service, logger *zap.SugaredLogger) {
	_, total, err := posts.FindAllPaged(ctx, interfaces.PageRequest{Page: 0, Size: 1, Sort: interfaces.SortDesc})
	if err != nil {
		logger.Errorw("Failed to check post store before seeding", "error", err)
		return
	}
	if total > 0 {
		logger.Infow("Post store not empty, skipping seed", "posts", total)
		return
	}

	n, err := service.Seed(ctx, gdb.PostFixtures())
	if err != nil {
		logger.Errorw("Seeding stopped early", "error", err, "seeded", n)
		return
	}
	logger.Infow("Seeded post store", "posts", n)
}
