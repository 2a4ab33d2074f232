package gitingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// commitFormat renders one commit's metadata on a single line with unit
// separators, which cannot appear in names, emails, or subjects.
const commitFormat = "%H\x1f%P\x1f%aI\x1f%cI\x1f%an\x1f%ae\x1f%s\x1f%b"

// Runner shells out to the git binary rooted at one working tree.
type Runner struct {
	repoPath string
}

// NewRunner fails fast when path is not inside a git working tree.
func NewRunner(ctx context.Context, path string) (*Runner, error) {
	r := &Runner{repoPath: path}
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf("%s is not a git repository", path)
	}
	return r, nil
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(output), nil
}

func (r *Runner) HeadSHA(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Runner) CommitExists(ctx context.Context, sha string) bool {
	_, err := r.run(ctx, "cat-file", "-e", sha+"^{commit}")
	return err == nil
}

// IsAncestor reports whether sha is reachable from HEAD. False after a
// rebase or force move of the branch the checkpoint was taken on.
func (r *Runner) IsAncestor(ctx context.Context, sha string) bool {
	_, err := r.run(ctx, "merge-base", "--is-ancestor", sha, "HEAD")
	return err == nil
}

// RevList returns commit SHAs oldest first. With a non-empty since SHA
// only commits after it are returned.
func (r *Runner) RevList(ctx context.Context, since string) ([]string, error) {
	spec := "HEAD"
	if since != "" {
		spec = since + "..HEAD"
	}
	out, err := r.run(ctx, "rev-list", "--reverse", spec)
	if err != nil {
		return nil, err
	}
	var shas []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			shas = append(shas, line)
		}
	}
	return shas, nil
}

func (r *Runner) showMeta(ctx context.Context, sha string) (string, error) {
	return r.run(ctx, "show", "--no-patch", "--format="+commitFormat, sha)
}

func (r *Runner) showNumstat(ctx context.Context, sha string) (string, error) {
	return r.run(ctx, "show", "--numstat", "--format=", sha)
}

func (r *Runner) showNameStatus(ctx context.Context, sha string) (string, error) {
	return r.run(ctx, "show", "--name-status", "--format=", sha)
}

func (r *Runner) RemoteURL(ctx context.Context) string {
	out, err := r.run(ctx, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (r *Runner) DefaultBranch(ctx context.Context) string {
	out, err := r.run(ctx, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(out), "origin/")
}
