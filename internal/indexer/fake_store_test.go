package indexer

import (
	"context"
	"fmt"
	"sync"

	"github.com/avolkov/codetwin/internal/models"
)

// fakeStore is an in-memory Store used to test pipeline behavior without
// a running database.
type fakeStore struct {
	mu      sync.Mutex
	hashes  map[string]string
	defs    map[string]models.Definition // keyed by signature
	chunks  map[string][]float32         // signature -> embedding
	imports map[string][]models.ImportFact
	calls   []models.CallFact
	envs    map[string][]models.EnvFact

	deleteFileCalls []string
	clearCalls      []string

	failUpsertFile bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]string),
		defs:    make(map[string]models.Definition),
		chunks:  make(map[string][]float32),
		imports: make(map[string][]models.ImportFact),
		envs:    make(map[string][]models.EnvFact),
	}
}

func (s *fakeStore) FileHashes(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes))
	for k, v := range s.hashes {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) UpsertFile(ctx context.Context, path, name, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpsertFile {
		return fmt.Errorf("store unavailable")
	}
	s.hashes[path] = hash
	return nil
}

func (s *fakeStore) DeleteFileDefinitions(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls = append(s.clearCalls, path)
	for sig, def := range s.defs {
		if def.FilePath == path {
			delete(s.defs, sig)
			delete(s.chunks, sig)
		}
	}
	delete(s.imports, path)
	delete(s.envs, path)
	return nil
}

func (s *fakeStore) DeleteFile(ctx context.Context, path string) error {
	if err := s.DeleteFileDefinitions(ctx, path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFileCalls = append(s.deleteFileCalls, path)
	delete(s.hashes, path)
	return nil
}

func (s *fakeStore) UpsertDefinition(ctx context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Signature] = *def
	return nil
}

func (s *fakeStore) HasChunk(ctx context.Context, def *models.Definition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chunks[def.Signature]
	return ok, nil
}

func (s *fakeStore) CreateChunk(ctx context.Context, def *models.Definition, text string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[def.Signature] = embedding
	return nil
}

func (s *fakeStore) LinkImports(ctx context.Context, path string, imports []models.ImportFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports[path] = append(s.imports[path], imports...)
	return nil
}

func (s *fakeStore) LinkCalls(ctx context.Context, calls []models.CallFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, calls...)
	return nil
}

func (s *fakeStore) UpsertEnvFacts(ctx context.Context, path string, facts []models.EnvFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs[path] = append(s.envs[path], facts...)
	return nil
}

func (s *fakeStore) hasDef(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.defs[signature]
	return ok
}

// fakeEmbedder returns fixed-dimension non-zero vectors and counts calls.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	texts []string
	fail  bool
	dims  int
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims}
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.texts = append(e.texts, texts...)
	if e.fail {
		return nil, fmt.Errorf("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dims }

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
