package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_files_processed_total",
		Help: "Files fully re-extracted and written to the graph.",
	})
	FilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_files_skipped_total",
		Help: "Files skipped because their content hash was unchanged.",
	})
	FilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_files_failed_total",
		Help: "Files that failed extraction or graph writes.",
	})
	EmbeddingCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_embedding_calls_total",
		Help: "Embedding API requests issued.",
	})
	EmbeddingTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_embedding_tokens_total",
		Help: "Tokens billed across embedding API requests.",
	})
	ChunkCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_chunk_cache_hits_total",
		Help: "Chunks reused instead of re-embedded.",
	})
	GitCommitsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_git_commits_ingested_total",
		Help: "Commits written to the graph by history sync.",
	})
	WatchEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codetwin_watch_events_total",
		Help: "Debounced filesystem events handled by the watch loop.",
	})
)
