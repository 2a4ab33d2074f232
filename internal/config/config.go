package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigDirName is the per-repository state directory, created by `codetwin init`.
const ConfigDirName = ".codetwin"

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

type IndexingConfig struct {
	IgnoreDirs    []string `yaml:"ignore_dirs"`
	MaxChunkChars int      `yaml:"max_chunk_chars"`
	Workers       int      `yaml:"workers"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Watch     WatchConfig     `yaml:"watch"`
	Server    ServerConfig    `yaml:"server"`

	// RepoRoot is resolved at load time, never read from the file.
	RepoRoot string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "password",
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com",
			Model:      "text-embedding-3-large",
			Dimensions: 3072,
		},
		Indexing: IndexingConfig{
			IgnoreDirs: []string{
				".git", "node_modules", "__pycache__", ".venv", "venv",
				"dist", "build", ".codetwin",
			},
			MaxChunkChars: 24000,
			Workers:       4,
		},
		Watch:  WatchConfig{DebounceMs: 500},
		Server: ServerConfig{Port: "3001"},
	}
}

// Load resolves the repository root starting from startDir, reads
// .codetwin/config.yaml over the defaults, then applies environment
// overrides. A missing config file is not an error.
func Load(startDir string) (*Config, error) {
	root, err := FindRepoRoot(startDir)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.RepoRoot = root

	path := filepath.Join(root, ConfigDirName, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
}

// FindRepoRoot walks up from startDir until it finds a directory holding
// either .codetwin or .git. Falls back to startDir when neither exists.
func FindRepoRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}
	for cur := dir; ; {
		for _, marker := range []string{ConfigDirName, ".git"} {
			if _, err := os.Stat(filepath.Join(cur, marker)); err == nil {
				return cur, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir, nil
		}
		cur = parent
	}
}

// Init writes a default config.yaml into .codetwin under root, creating
// the directory if needed. Existing files are left alone.
func Init(root string) (string, error) {
	dir := filepath.Join(root, ConfigDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
