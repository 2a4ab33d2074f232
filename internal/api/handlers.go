package api

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/avolkov/codetwin/internal/db"
	"github.com/avolkov/codetwin/internal/gitingest"
)

// GraphReader is the read surface the handlers need. *db.Graph implements it.
type GraphReader interface {
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]db.SearchResult, error)
	FulltextSearch(ctx context.Context, text string, limit int) ([]db.SearchResult, error)
	FileDependencies(ctx context.Context, path string) (imports, importedBy []string, err error)
	Impact(ctx context.Context, path string, maxDepth int) ([]db.ImpactEntry, error)
	Counts(ctx context.Context) (*db.GraphCounts, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GitSyncer is wired only when the repository has git history;
// the git endpoints 404 otherwise.
type GitSyncer interface {
	Sync(ctx context.Context, full bool) (*gitingest.SyncReport, error)
	Status(ctx context.Context) (*gitingest.Status, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
	BreakerState() string
}

type Handler struct {
	dbClient  Pinger
	reader    GraphReader
	embedder  Embedder
	gitSyncer GitSyncer
	gitCounts func(ctx context.Context) (*db.GitCounts, error)
}

func NewHandler(dbClient Pinger, reader GraphReader, embedder Embedder, gitSyncer GitSyncer, gitCounts func(ctx context.Context) (*db.GitCounts, error)) *Handler {
	return &Handler{
		dbClient:  dbClient,
		reader:    reader,
		embedder:  embedder,
		gitSyncer: gitSyncer,
		gitCounts: gitCounts,
	}
}

// Health reports store reachability and the breaker state.
func (h *Handler) Health(c fiber.Ctx) error {
	if err := h.dbClient.Ping(c.Context()); err != nil {
		return c.Status(503).JSON(fiber.Map{
			"status":  "degraded",
			"breaker": h.dbClient.BreakerState(),
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"breaker": h.dbClient.BreakerState(),
	})
}

// Search answers semantic queries. mode=vector embeds the query and runs
// similarity search over chunks; mode=text runs fulltext search over
// entity names and docstrings.
func (h *Handler) Search(c fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(400).JSON(fiber.Map{"error": "q is required"})
	}
	mode := c.Query("mode", "vector")
	limit := fiber.Query[int](c, "limit", 10)

	var (
		results []db.SearchResult
		err     error
	)
	switch mode {
	case "vector":
		embeddings, embErr := h.embedder.Embed(c.Context(), []string{query})
		if embErr != nil {
			return c.Status(502).JSON(fiber.Map{"error": embErr.Error()})
		}
		results, err = h.reader.VectorSearch(c.Context(), embeddings[0], limit)
	case "text":
		results, err = h.reader.FulltextSearch(c.Context(), query, limit)
	default:
		return c.Status(400).JSON(fiber.Map{"error": "mode must be vector or text"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if results == nil {
		results = []db.SearchResult{}
	}
	return c.JSON(fiber.Map{"query": query, "mode": mode, "results": results})
}

// FileDependencies returns what a file imports and what imports it.
func (h *Handler) FileDependencies(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(400).JSON(fiber.Map{"error": "path is required"})
	}
	imports, importedBy, err := h.reader.FileDependencies(c.Context(), path)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if imports == nil {
		imports = []string{}
	}
	if importedBy == nil {
		importedBy = []string{}
	}
	return c.JSON(fiber.Map{
		"path":       path,
		"imports":    imports,
		"importedBy": importedBy,
	})
}

// Impact lists files transitively importing the given file, with the
// shortest import distance to each.
func (h *Handler) Impact(c fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return c.Status(400).JSON(fiber.Map{"error": "path is required"})
	}
	depth := fiber.Query[int](c, "depth", 3)
	if depth < 1 || depth > 10 {
		return c.Status(400).JSON(fiber.Map{"error": "depth must be between 1 and 10"})
	}
	entries, err := h.reader.Impact(c.Context(), path, depth)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []db.ImpactEntry{}
	}
	return c.JSON(fiber.Map{"path": path, "depth": depth, "impact": entries})
}

// Status summarizes graph contents.
func (h *Handler) Status(c fiber.Ctx) error {
	counts, err := h.reader.Counts(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	payload := fiber.Map{"graph": counts}
	if h.gitCounts != nil {
		if gitCounts, err := h.gitCounts(c.Context()); err == nil {
			payload["git"] = gitCounts
		}
	}
	return c.JSON(payload)
}

// GitSync replays new commits into the graph.
func (h *Handler) GitSync(c fiber.Ctx) error {
	if h.gitSyncer == nil {
		return c.Status(404).JSON(fiber.Map{"error": "not a git repository"})
	}
	full := fiber.Query[bool](c, "full", false)
	report, err := h.gitSyncer.Sync(c.Context(), full)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// GitStatus reports the checkpoint position relative to HEAD.
func (h *Handler) GitStatus(c fiber.Ctx) error {
	if h.gitSyncer == nil {
		return c.Status(404).JSON(fiber.Map{"error": "not a git repository"})
	}
	status, err := h.gitSyncer.Status(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(status)
}
