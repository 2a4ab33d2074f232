package gitingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/codetwin/internal/config"
	"github.com/avolkov/codetwin/internal/metrics"
	"github.com/avolkov/codetwin/internal/models"
)

// GitStore is the graph surface history sync writes through.
// *db.GitWriter implements it.
type GitStore interface {
	UpsertRepo(ctx context.Context, meta *models.GitRepoMeta) error
	UpsertCommit(ctx context.Context, meta *models.GitRepoMeta, commit *models.GitCommitRecord) error
}

// Ingestor replays local git history into the graph, oldest commit
// first, resuming from a checkpoint kept on disk.
type Ingestor struct {
	runner *Runner
	store  GitStore
	root   string
	logger *slog.Logger
}

func NewIngestor(runner *Runner, store GitStore, root string, logger *slog.Logger) *Ingestor {
	return &Ingestor{runner: runner, store: store, root: root, logger: logger}
}

type SyncReport struct {
	CommitsProcessed int           `json:"commitsProcessed"`
	CheckpointReset  bool          `json:"checkpointReset"`
	CheckpointSHA    string        `json:"checkpointSha"`
	Duration         time.Duration `json:"durationNs"`
}

// Sync ingests commits newer than the checkpoint. A checkpoint pointing
// at a commit that no longer exists or is no longer an ancestor of HEAD
// (rebase, force push) is discarded and the whole history replays; the
// commit upserts are idempotent so that is safe. With full set the
// checkpoint is ignored outright.
func (g *Ingestor) Sync(ctx context.Context, full bool) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}

	meta, err := g.repoMeta(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.store.UpsertRepo(ctx, meta); err != nil {
		return nil, err
	}

	since := ""
	cp, err := config.LoadGitCheckpoint(g.root)
	if err != nil {
		return nil, err
	}
	if cp != nil && !full {
		if g.runner.CommitExists(ctx, cp.LastSyncedSHA) && g.runner.IsAncestor(ctx, cp.LastSyncedSHA) {
			since = cp.LastSyncedSHA
		} else {
			g.logger.Warn("checkpoint no longer reachable from HEAD, replaying full history",
				"checkpoint", cp.LastSyncedSHA)
			report.CheckpointReset = true
		}
	}

	shas, err := g.runner.RevList(ctx, since)
	if err != nil {
		return nil, err
	}

	for _, sha := range shas {
		record, err := g.commitRecord(ctx, sha)
		if err != nil {
			g.saveCheckpoint(report)
			return report, fmt.Errorf("failed to read commit %s: %w", sha, err)
		}
		if err := g.store.UpsertCommit(ctx, meta, record); err != nil {
			g.saveCheckpoint(report)
			return report, fmt.Errorf("failed to write commit %s: %w", sha, err)
		}
		report.CommitsProcessed++
		report.CheckpointSHA = sha
		metrics.GitCommitsIngested.Inc()
	}

	if report.CheckpointSHA == "" {
		// Nothing new; keep the old checkpoint, or pin HEAD on a first
		// run over a repo with no commits to replay.
		if cp != nil && !report.CheckpointReset {
			report.CheckpointSHA = cp.LastSyncedSHA
		} else if head, err := g.runner.HeadSHA(ctx); err == nil {
			report.CheckpointSHA = head
		}
	}
	g.saveCheckpoint(report)

	report.Duration = time.Since(start)
	return report, nil
}

// Status compares the on-disk checkpoint with HEAD.
type Status struct {
	CheckpointSHA string    `json:"checkpointSha"`
	SyncedAt      time.Time `json:"syncedAt"`
	HeadSHA       string    `json:"headSha"`
	CommitsBehind int       `json:"commitsBehind"`
}

func (g *Ingestor) Status(ctx context.Context) (*Status, error) {
	head, err := g.runner.HeadSHA(ctx)
	if err != nil {
		return nil, err
	}
	status := &Status{HeadSHA: head}

	cp, err := config.LoadGitCheckpoint(g.root)
	if err != nil {
		return nil, err
	}
	since := ""
	if cp != nil && g.runner.CommitExists(ctx, cp.LastSyncedSHA) && g.runner.IsAncestor(ctx, cp.LastSyncedSHA) {
		status.CheckpointSHA = cp.LastSyncedSHA
		status.SyncedAt = cp.SyncedAt
		since = cp.LastSyncedSHA
	}
	shas, err := g.runner.RevList(ctx, since)
	if err != nil {
		return nil, err
	}
	status.CommitsBehind = len(shas)
	return status, nil
}

func (g *Ingestor) repoMeta(ctx context.Context) (*models.GitRepoMeta, error) {
	if _, err := g.runner.HeadSHA(ctx); err != nil {
		return nil, fmt.Errorf("repository has no commits: %w", err)
	}
	return &models.GitRepoMeta{
		RepoID:        g.root,
		RootPath:      g.root,
		RemoteURL:     g.runner.RemoteURL(ctx),
		DefaultBranch: g.runner.DefaultBranch(ctx),
	}, nil
}

func (g *Ingestor) commitRecord(ctx context.Context, sha string) (*models.GitCommitRecord, error) {
	meta, err := g.runner.showMeta(ctx, sha)
	if err != nil {
		return nil, err
	}
	record, err := parseCommitMeta(meta)
	if err != nil {
		return nil, err
	}

	numstat, err := g.runner.showNumstat(ctx, sha)
	if err != nil {
		return nil, err
	}
	nameStatus, err := g.runner.showNameStatus(ctx, sha)
	if err != nil {
		return nil, err
	}
	record.Files = mergeDiffStats(parseNumstat(numstat), parseNameStatus(nameStatus))
	return record, nil
}

func (g *Ingestor) saveCheckpoint(report *SyncReport) {
	if report.CheckpointSHA == "" {
		return
	}
	cp := &config.GitCheckpoint{
		LastSyncedSHA: report.CheckpointSHA,
		SyncedAt:      time.Now().UTC(),
	}
	if err := config.SaveGitCheckpoint(g.root, cp); err != nil {
		g.logger.Error("failed to save git checkpoint", "error", err)
	}
}
