package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avolkov/codetwin/internal/extractor"
	"github.com/avolkov/codetwin/internal/metrics"
	"github.com/avolkov/codetwin/internal/models"
	"github.com/avolkov/codetwin/pkg/treesitter"
)

// Store is the graph surface the pipeline writes through. *db.Graph
// implements it; tests substitute an in-memory fake.
type Store interface {
	FileHashes(ctx context.Context) (map[string]string, error)
	UpsertFile(ctx context.Context, path, name, hash string) error
	DeleteFileDefinitions(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
	UpsertDefinition(ctx context.Context, def *models.Definition) error
	HasChunk(ctx context.Context, def *models.Definition) (bool, error)
	CreateChunk(ctx context.Context, def *models.Definition, text string, embedding []float32) error
	LinkImports(ctx context.Context, path string, imports []models.ImportFact) error
	LinkCalls(ctx context.Context, calls []models.CallFact) error
	UpsertEnvFacts(ctx context.Context, path string, facts []models.EnvFact) error
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type Options struct {
	Workers       int
	IgnoreDirs    []string
	MaxChunkChars int
}

type Pipeline struct {
	store     Store
	embedder  Embedder
	extractor *extractor.Extractor
	logger    *slog.Logger
	opts      Options
	ignore    map[string]struct{}
}

func NewPipeline(store Store, embedder Embedder, logger *slog.Logger, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignore[d] = struct{}{}
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		extractor: extractor.New(logger),
		logger:    logger,
		opts:      opts,
		ignore:    ignore,
	}
}

type Result struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	FilesRemoved   int
	Definitions    int
	ChunksCreated  int
	ChunksReused   int
	Errors         []string
	Duration       time.Duration
}

// ProgressFunc reports per-file progress during a repository pass.
type ProgressFunc func(done, total int, path string)

// IndexRepository runs the full pipeline over root: hash-gated scan,
// per-file extraction and chunking, stale file removal, then import and
// call linking across everything scanned. With full set, unchanged files
// are revisited too; their existing chunks are reused rather than
// re-embedded.
func (p *Pipeline) IndexRepository(ctx context.Context, root string, full bool, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{}

	paths, err := p.scan(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	stored, err := p.store.FileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored hashes: %w", err)
	}

	type job struct {
		rel     string
		changed bool
	}
	var jobs []job
	current := make(map[string]struct{}, len(paths))
	for _, rel := range paths {
		current[rel] = struct{}{}
		hash, err := hashFile(filepath.Join(root, rel))
		if err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rel, err))
			metrics.FilesFailed.Inc()
			continue
		}
		changed := stored[rel] != hash
		if !changed && !full {
			result.FilesSkipped++
			metrics.FilesSkipped.Inc()
			continue
		}
		jobs = append(jobs, job{rel: rel, changed: changed})
	}

	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, p.opts.Workers)
		mu   sync.Mutex
		done int
		// Facts from every processed file feed the linking passes.
		allFacts []*models.FileFacts
	)
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			facts, created, reused, err := p.processFile(ctx, root, j.rel, j.changed)

			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(done, len(jobs), j.rel)
			}
			if err != nil {
				result.FilesFailed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", j.rel, err))
				metrics.FilesFailed.Inc()
				return
			}
			result.FilesProcessed++
			result.Definitions += len(facts.Definitions)
			result.ChunksCreated += created
			result.ChunksReused += reused
			allFacts = append(allFacts, facts)
			metrics.FilesProcessed.Inc()
		}(j)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Files present in the graph but gone from disk.
	for path := range stored {
		if _, ok := current[path]; ok {
			continue
		}
		if err := p.store.DeleteFile(ctx, path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: remove: %v", path, err))
			continue
		}
		result.FilesRemoved++
	}

	// Linking runs after every File node exists so CONTAINS-matching and
	// signature lookups see the whole repository.
	for _, facts := range allFacts {
		if len(facts.Imports) > 0 {
			if err := p.store.LinkImports(ctx, facts.Path, facts.Imports); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: imports: %v", facts.Path, err))
			}
		}
		if len(facts.Calls) > 0 {
			if err := p.store.LinkCalls(ctx, facts.Calls); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: calls: %v", facts.Path, err))
			}
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ProcessFile re-indexes a single file after a filesystem change: its
// definitions and chunks are dropped and rebuilt, then its import and
// call edges are relinked. The stored hash only advances when every
// step succeeds.
func (p *Pipeline) ProcessFile(ctx context.Context, root, rel string) error {
	facts, _, _, err := p.processFile(ctx, root, rel, true)
	if err != nil {
		return err
	}
	if len(facts.Imports) > 0 {
		if err := p.store.LinkImports(ctx, rel, facts.Imports); err != nil {
			return fmt.Errorf("failed to link imports: %w", err)
		}
	}
	if len(facts.Calls) > 0 {
		if err := p.store.LinkCalls(ctx, facts.Calls); err != nil {
			return fmt.Errorf("failed to link calls: %w", err)
		}
	}
	metrics.FilesProcessed.Inc()
	return nil
}

// RemoveFile drops a deleted file and everything hanging off it.
func (p *Pipeline) RemoveFile(ctx context.Context, rel string) error {
	return p.store.DeleteFile(ctx, rel)
}

func (p *Pipeline) scan(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := p.ignore[info.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !treesitter.Supported(filepath.Ext(path)) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (p *Pipeline) processFile(ctx context.Context, root, rel string, changed bool) (*models.FileFacts, int, int, error) {
	content, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read file: %w", err)
	}
	hash := hashContent(content)

	facts, err := p.extractor.Extract(ctx, content, filepath.Ext(rel), rel)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("extraction failed: %w", err)
	}

	if changed {
		if err := p.store.DeleteFileDefinitions(ctx, rel); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to clear previous definitions: %w", err)
		}
	}
	// The File node is created with an empty hash first so definition
	// edges have a target; the real hash commits only after every write
	// below succeeds. A failure mid-file leaves the hash empty and the
	// file is picked up again on the next pass.
	if err := p.store.UpsertFile(ctx, rel, filepath.Base(rel), ""); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to upsert file: %w", err)
	}

	var pending []*models.Definition
	reused := 0
	for i := range facts.Definitions {
		def := &facts.Definitions[i]
		if err := p.store.UpsertDefinition(ctx, def); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to upsert %s: %w", def.Signature, err)
		}
		exists, err := p.store.HasChunk(ctx, def)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to check chunk for %s: %w", def.Signature, err)
		}
		if exists {
			reused++
			metrics.ChunkCacheHits.Inc()
			continue
		}
		pending = append(pending, def)
	}

	created, err := p.createChunks(ctx, pending)
	if err != nil {
		return nil, 0, 0, err
	}

	if len(facts.EnvVars) > 0 {
		if err := p.store.UpsertEnvFacts(ctx, rel, facts.EnvVars); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to upsert env facts: %w", err)
		}
	}

	if err := p.store.UpsertFile(ctx, rel, filepath.Base(rel), hash); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to record file hash: %w", err)
	}

	return facts, created, reused, nil
}

func (p *Pipeline) createChunks(ctx context.Context, defs []*models.Definition) (int, error) {
	if len(defs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(defs))
	for i, def := range defs {
		texts[i] = ChunkText(def, p.opts.MaxChunkChars)
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		// Store zero vectors instead of losing the chunks; they get real
		// embeddings on the next change to this file.
		p.logger.Warn("embedding failed, storing zero vectors",
			"count", len(defs), "error", err)
		embeddings = make([][]float32, len(defs))
		for i := range embeddings {
			embeddings[i] = make([]float32, p.embedder.Dimensions())
		}
	}
	metrics.EmbeddingCalls.Inc()

	created := 0
	for i, def := range defs {
		if err := p.store.CreateChunk(ctx, def, texts[i], embeddings[i]); err != nil {
			return created, fmt.Errorf("failed to create chunk for %s: %w", def.Signature, err)
		}
		created++
	}
	return created, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hashContent(content), nil
}
