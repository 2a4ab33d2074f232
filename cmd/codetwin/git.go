package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/gitingest"
)

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Sync git history into the graph",
}

var flagGitFull bool

var gitSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay new commits into the graph",
	Long:  "Ingests commits newer than the last checkpoint, oldest first, linking commits to authors and touched files. After a rebase or force push the checkpoint resets and the whole history replays idempotently.",
	RunE:  runGitSync,
}

var gitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint position and graph counts",
	RunE:  runGitStatus,
}

func init() {
	gitSyncCmd.Flags().BoolVar(&flagGitFull, "full", false, "ignore the checkpoint and replay all history")
	gitCmd.AddCommand(gitSyncCmd)
	gitCmd.AddCommand(gitStatusCmd)
}

func runGitSync(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner, err := gitingest.NewRunner(ctx, cfg.RepoRoot)
	if err != nil {
		return err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ing := gitingest.NewIngestor(runner, db.NewGitWriter(client), cfg.RepoRoot, logger)
	report, err := ing.Sync(ctx, flagGitFull)
	if err != nil {
		return err
	}

	if report.CheckpointReset {
		color.Yellow("Checkpoint was unreachable; replayed full history.")
	}
	if report.CommitsProcessed == 0 {
		color.Green("Git history is up to date.")
	} else {
		color.Green("Ingested %d commits in %s.", report.CommitsProcessed, report.Duration.Round(time.Millisecond))
	}
	if report.CheckpointSHA != "" {
		fmt.Printf("Checkpoint: %s\n", report.CheckpointSHA)
	}
	return nil
}

func runGitStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner, err := gitingest.NewRunner(ctx, cfg.RepoRoot)
	if err != nil {
		return err
	}
	ing := gitingest.NewIngestor(runner, nil, cfg.RepoRoot, logger)
	status, err := ing.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("HEAD:           %s\n", status.HeadSHA)
	if status.CheckpointSHA == "" {
		fmt.Println("Checkpoint:     none (never synced)")
	} else {
		fmt.Printf("Checkpoint:     %s\n", status.CheckpointSHA)
		fmt.Printf("Last synced:    %s\n", status.SyncedAt.Format(time.RFC3339))
	}
	if status.CommitsBehind == 0 {
		color.Green("Commits behind: 0")
	} else {
		color.Yellow("Commits behind: %d", status.CommitsBehind)
	}

	// Graph-side counts are best effort; the store may be down.
	if client, err := connect(ctx, cfg); err == nil {
		defer client.Close()
		if counts, err := db.NewGitWriter(client).Counts(ctx, cfg.RepoRoot); err == nil {
			fmt.Printf("Graph:          %d commits, %d authors, %d file versions\n",
				counts.Commits, counts.Authors, counts.FileVersions)
		}
	}
	return nil
}
