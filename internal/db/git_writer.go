package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/avolkov/codetwin/internal/models"
)

// GitWriter syncs local git history into dedicated Git* labels.
type GitWriter struct {
	client *Client
}

func NewGitWriter(client *Client) *GitWriter {
	return &GitWriter{client: client}
}

// UpsertRepo creates or updates the GitRepo node for a working tree.
func (w *GitWriter) UpsertRepo(ctx context.Context, meta *models.GitRepoMeta) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (r:GitRepo {repo_id: $repoId})
			SET r.root_path = $rootPath,
			    r.remote_url = $remoteUrl,
			    r.default_branch = $defaultBranch
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"repoId":        meta.RepoID,
			"rootPath":      meta.RootPath,
			"remoteUrl":     nullable(meta.RemoteURL),
			"defaultBranch": nullable(meta.DefaultBranch),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upsert git repo %s: %w", meta.RepoID, err)
	}
	return nil
}

// UpsertCommit merges one commit, its author, and its touched files.
// File versions link back to the matching File node when one exists.
func (w *GitWriter) UpsertCommit(ctx context.Context, meta *models.GitRepoMeta, commit *models.GitCommitRecord) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (commit:GitCommit {repo_id: $repoId, sha: $sha})
			SET commit.parent_count = $parentCount,
			    commit.authored_at = datetime($authoredAt),
			    commit.committed_at = datetime($committedAt),
			    commit.message_subject = $subject,
			    commit.message_body = $body,
			    commit.is_merge = $isMerge
			WITH commit
			MATCH (repo:GitRepo {repo_id: $repoId})
			MERGE (repo)-[:HAS_COMMIT]->(commit)
			MERGE (author:GitAuthor {repo_id: $repoId, email_norm: $authorEmail})
			SET author.name_latest = $authorName
			MERGE (commit)-[:AUTHORED_BY]->(author)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"repoId":      meta.RepoID,
			"sha":         commit.SHA,
			"parentCount": commit.ParentCount,
			"authoredAt":  commit.AuthoredAt,
			"committedAt": commit.CommittedAt,
			"subject":     commit.Subject,
			"body":        commit.Body,
			"isMerge":     commit.IsMerge,
			"authorEmail": commit.AuthorEmail,
			"authorName":  commit.AuthorName,
		})
		if err != nil {
			return nil, err
		}

		if len(commit.Files) == 0 {
			return nil, nil
		}

		files := make([]map[string]any, 0, len(commit.Files))
		for _, fc := range commit.Files {
			files = append(files, map[string]any{
				"path":        fc.Path,
				"change_type": fc.ChangeType,
				"additions":   fc.Additions,
				"deletions":   fc.Deletions,
			})
		}
		filesQuery := `
			UNWIND $files AS file
			MATCH (commit:GitCommit {repo_id: $repoId, sha: $sha})
			MERGE (fv:GitFileVersion {repo_id: $repoId, sha: $sha, path: file.path})
			SET fv.change_type = file.change_type,
			    fv.additions = file.additions,
			    fv.deletions = file.deletions
			MERGE (commit)-[:TOUCHES]->(fv)
			WITH fv, file
			OPTIONAL MATCH (code_file:File {path: file.path})
			FOREACH (_ IN CASE WHEN code_file IS NULL THEN [] ELSE [1] END |
				MERGE (fv)-[:VERSION_OF]->(code_file)
			)
		`
		_, err = tx.Run(ctx, filesQuery, map[string]any{
			"repoId": meta.RepoID,
			"sha":    commit.SHA,
			"files":  files,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upsert commit %s: %w", commit.SHA, err)
	}
	return nil
}

// GitCounts summarizes git graph presence for one repository.
type GitCounts struct {
	RepoNodeExists bool  `json:"repoNodeExists"`
	Commits        int64 `json:"commits"`
	Authors        int64 `json:"authors"`
	FileVersions   int64 `json:"fileVersions"`
}

func (w *GitWriter) Counts(ctx context.Context, repoID string) (*GitCounts, error) {
	result, err := w.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			RETURN count{ (r:GitRepo {repo_id: $repoId}) } AS repos,
			       count{ (c:GitCommit {repo_id: $repoId}) } AS commits,
			       count{ (a:GitAuthor {repo_id: $repoId}) } AS authors,
			       count{ (fv:GitFileVersion {repo_id: $repoId}) } AS file_versions
		`
		records, err := tx.Run(ctx, query, map[string]any{"repoId": repoID})
		if err != nil {
			return nil, err
		}
		counts := &GitCounts{}
		if records.Next(ctx) {
			rec := records.Record()
			if v, _ := rec.Get("repos"); v != nil {
				if n, ok := v.(int64); ok {
					counts.RepoNodeExists = n > 0
				}
			}
			for key, dst := range map[string]*int64{
				"commits": &counts.Commits, "authors": &counts.Authors,
				"file_versions": &counts.FileVersions,
			} {
				if v, _ := rec.Get(key); v != nil {
					if n, ok := v.(int64); ok {
						*dst = n
					}
				}
			}
		}
		return counts, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("git counts for %s: %w", repoID, err)
	}
	return result.(*GitCounts), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
