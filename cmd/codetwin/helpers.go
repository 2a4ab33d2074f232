package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkov/codetwin/internal/config"
	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/embedding"
	"github.com/avolkov/codetwin/internal/indexer"
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}

func connect(ctx context.Context, cfg *config.Config) (*db.Client, error) {
	return db.NewClient(ctx, db.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
	})
}

func newEmbedder(cfg *config.Config) *embedding.OpenAIClient {
	return embedding.NewOpenAIClient(embedding.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
}

func newPipeline(cfg *config.Config, graph *db.Graph, embedder indexer.Embedder, logger *slog.Logger) *indexer.Pipeline {
	return indexer.NewPipeline(graph, embedder, logger, indexer.Options{
		Workers:       cfg.Indexing.Workers,
		IgnoreDirs:    cfg.Indexing.IgnoreDirs,
		MaxChunkChars: cfg.Indexing.MaxChunkChars,
	})
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func debounce(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
}
