package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/watcher"
)

var flagNoInitialScan bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the graph in sync with file changes",
	Long:  "Runs an incremental index pass, then watches the repository for changes and reindexes edited files as they settle. Deleted files are dropped from the graph.",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&flagNoInitialScan, "no-initial-scan", false, "skip the catch-up index pass on startup")
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	pipeline := newPipeline(cfg, db.NewGraph(client), newEmbedder(cfg), logger)

	if !flagNoInitialScan {
		logger.Info("running catch-up index pass")
		result, err := pipeline.IndexRepository(ctx, cfg.RepoRoot, false, nil)
		if err != nil {
			return err
		}
		logger.Info("catch-up pass done",
			"processed", result.FilesProcessed,
			"skipped", result.FilesSkipped,
			"failed", result.FilesFailed)
	}

	w, err := watcher.New(watcher.Config{
		Root:       cfg.RepoRoot,
		Debounce:   debounce(cfg),
		IgnoreDirs: cfg.Indexing.IgnoreDirs,
	}, pipeline, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
