package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GitCheckpoint records how far git history ingestion has advanced.
// It lives on disk rather than in the graph so a store outage can
// never corrupt it.
type GitCheckpoint struct {
	LastSyncedSHA string    `yaml:"last_synced_sha"`
	SyncedAt      time.Time `yaml:"synced_at"`
}

func checkpointPath(root string) string {
	return filepath.Join(root, ConfigDirName, "git.yaml")
}

// LoadGitCheckpoint returns nil when no checkpoint has been written yet.
func LoadGitCheckpoint(root string) (*GitCheckpoint, error) {
	path := checkpointPath(root)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var cp GitCheckpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cp.LastSyncedSHA == "" {
		return nil, nil
	}
	return &cp, nil
}

// SaveGitCheckpoint writes atomically via a temp file rename so a crash
// mid-write leaves the previous checkpoint intact.
func SaveGitCheckpoint(root string, cp *GitCheckpoint) error {
	path := checkpointPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
