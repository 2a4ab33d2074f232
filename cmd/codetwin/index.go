package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/embedding"
	"github.com/avolkov/codetwin/internal/indexer"
)

var flagFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the repository into the graph",
	Long:  "Scans the repository, extracts definitions, imports, calls and env usage from changed files, embeds new code chunks, and links everything in Neo4j. Unchanged files are skipped by content hash.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagFull, "full", false, "revisit unchanged files too (reuses existing chunks)")
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	embedder := newEmbedder(cfg)
	pipeline := newPipeline(cfg, db.NewGraph(client), embedder, logger)

	var bar *progressbar.ProgressBar
	progress := func(done, total int, path string) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "Indexing")
		}
		_ = bar.Set(done)
	}

	result, err := pipeline.IndexRepository(ctx, cfg.RepoRoot, flagFull, progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	printIndexResult(result, embedder.Usage())
	return nil
}

func printIndexResult(result *indexer.Result, usage embedding.UsageStats) {
	fmt.Println()
	if result.FilesProcessed == 0 && result.FilesRemoved == 0 && result.FilesFailed == 0 {
		color.Green("Everything is up to date (%d files unchanged).", result.FilesSkipped)
		return
	}

	color.Green("Indexing complete in %s", result.Duration.Round(time.Millisecond))
	fmt.Printf("  Files processed: %d\n", result.FilesProcessed)
	fmt.Printf("  Files skipped:   %d\n", result.FilesSkipped)
	if result.FilesRemoved > 0 {
		fmt.Printf("  Files removed:   %d\n", result.FilesRemoved)
	}
	fmt.Printf("  Definitions:     %d\n", result.Definitions)
	fmt.Printf("  Chunks created:  %d\n", result.ChunksCreated)
	if result.ChunksReused > 0 {
		fmt.Printf("  Chunks reused:   %d\n", result.ChunksReused)
	}
	if usage.Requests > 0 {
		fmt.Printf("  Embedding cost:  $%.4f (%d tokens)\n", usage.EstimatedCost, usage.TotalTokens)
	}
	if result.FilesFailed > 0 {
		color.Yellow("  Files failed:    %d", result.FilesFailed)
		for _, msg := range result.Errors {
			color.Yellow("    %s", msg)
		}
	}
}
