package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Neo4j.URI != "bolt://localhost:7687" {
		t.Errorf("expected default URI, got %s", cfg.Neo4j.URI)
	}
	if cfg.Embedding.Dimensions != 3072 {
		t.Errorf("expected 3072 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.RepoRoot != dir {
		t.Errorf("expected repo root %s, got %s", dir, cfg.RepoRoot)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ConfigDirName)
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "neo4j:\n  uri: bolt://db.internal:7687\nindexing:\n  workers: 8\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Neo4j.URI != "bolt://db.internal:7687" {
		t.Errorf("expected file URI, got %s", cfg.Neo4j.URI)
	}
	if cfg.Indexing.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Indexing.Workers)
	}
	// Untouched sections keep defaults.
	if cfg.Neo4j.User != "neo4j" {
		t.Errorf("expected default user, got %s", cfg.Neo4j.User)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ConfigDirName)
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "neo4j:\n  uri: bolt://from-file:7687\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NEO4J_URI", "bolt://from-env:7687")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Neo4j.URI != "bolt://from-env:7687" {
		t.Errorf("expected env URI to win, got %s", cfg.Neo4j.URI)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("expected env api key, got %s", cfg.Embedding.APIKey)
	}
}

func TestFindRepoRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "internal", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := FindRepoRoot(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != root {
		t.Errorf("expected %s, got %s", root, found)
	}
}

func TestFindRepoRoot_FallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	found, err := FindRepoRoot(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != dir {
		t.Errorf("expected fallback to %s, got %s", dir, found)
	}
}

func TestInit_CreatesConfigOnce(t *testing.T) {
	dir := t.TempDir()
	path, err := Init(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	custom := []byte("server:\n  port: \"9999\"\n")
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatal(err)
	}

	// Second init must not clobber the edited file.
	if _, err := Init(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(custom) {
		t.Error("expected init to preserve existing config file")
	}
}

func TestGitCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cp, err := LoadGitCheckpoint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp != nil {
		t.Fatal("expected nil checkpoint before first save")
	}

	saved := &GitCheckpoint{LastSyncedSHA: "abc123", SyncedAt: time.Now().UTC()}
	if err := SaveGitCheckpoint(dir, saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadGitCheckpoint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded == nil || loaded.LastSyncedSHA != "abc123" {
		t.Fatalf("expected checkpoint abc123, got %+v", loaded)
	}
}
