// Command reindex rebuilds the search index from the post store. It is the
// repair path for index drift left by sync events that failed to apply.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noticeboard/board-backend/internal/config"
	gdb "github.com/noticeboard/board-backend/internal/db"
	"github.com/noticeboard/board-backend/internal/jobs"
	"github.com/noticeboard/board-backend/internal/log"
	"github.com/noticeboard/board-backend/internal/search"

	_ "github.com/noticeboard/board-backend/internal/search/elastic"
	_ "github.com/noticeboard/board-backend/internal/search/kvindex"
	_ "github.com/noticeboard/board-backend/internal/search/mongoindex"
)

func main() {
	flags := flag.NewFlagSet("reindex", flag.ExitOnError)
	backend := flags.String("backend", "", "search backend to rebuild (defaults to BRD_SEARCH_BACKEND)")
	indexName := flags.String("index", "", "index name (defaults to BRD_SEARCH_INDEX_NAME)")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *backend != "" {
		cfg.Search.Backend = *backend
	}
	if *indexName != "" {
		cfg.Search.IndexName = *indexName
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	posts, err := gdb.NewPostStore(gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Fatalw("Failed to create post store", "error", err)
	}
	if err := gdb.ConnectAndMigrate(ctx, posts, false); err != nil {
		logger.Fatalw("Failed to connect post store", "error", err)
	}
	defer posts.Disconnect(context.Background())

	index, err := search.NewIndex(ctx, search.Config{
		Backend:           search.Backend(cfg.Search.Backend),
		IndexName:         cfg.Search.IndexName,
		RedisURL:          cfg.Search.RedisURL,
		MongoURI:          cfg.Search.MongoURI,
		MongoDatabase:     cfg.Search.MongoDatabase,
		ElasticsearchURLs: cfg.Search.ElasticsearchURLs,
	})
	if err != nil {
		logger.Fatalw("Failed to open search index", "error", err)
	}
	defer index.Close()

	result, err := jobs.NewIndexRebuilder(posts, index, logger, cfg.Sync.OpTimeout).Rebuild(ctx)
	if err != nil {
		logger.Errorw("Rebuild failed", "error", err, "indexed", result.Indexed, "failed", result.Failed)
		os.Exit(1)
	}

	logger.Infow("Rebuild finished",
		"backend", cfg.Search.Backend,
		"indexed", result.Indexed,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	if result.Failed > 0 {
		os.Exit(2)
	}
}
