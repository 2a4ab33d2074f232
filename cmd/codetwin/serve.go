package main

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/avolkov/codetwin/internal/api"
	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/gitingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API",
	Long:  "Starts the HTTP API: semantic and fulltext search, file dependency and impact queries, graph status, git sync, and Prometheus metrics.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	graph := db.NewGraph(client)
	gitWriter := db.NewGitWriter(client)

	// Git endpoints are only wired when history is actually available.
	var syncer api.GitSyncer
	gitCounts := func(ctx context.Context) (*db.GitCounts, error) {
		return gitWriter.Counts(ctx, cfg.RepoRoot)
	}
	if runner, err := gitingest.NewRunner(ctx, cfg.RepoRoot); err == nil {
		syncer = gitingest.NewIngestor(runner, gitWriter, cfg.RepoRoot, logger)
	} else {
		logger.Warn("git endpoints disabled", "error", err)
		gitCounts = nil
	}

	app := fiber.New(fiber.Config{
		AppName: "codetwin API",
	})
	handler := api.NewHandler(client, graph, newEmbedder(cfg), syncer, gitCounts)
	api.SetupRoutes(app, handler)

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logger.Info("serving API", "port", cfg.Server.Port)
	return app.Listen(":" + cfg.Server.Port)
}
