package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphReader struct {
	client *Client
}

func NewGraphReader(client *Client) *GraphReader {
	return &GraphReader{client: client}
}

// FileHashes returns path -> stored content hash for every File node.
// One bulk read at pass start keeps the hash gate cheap.
func (r *GraphReader) FileHashes(ctx context.Context) (map[string]string, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `MATCH (f:File) RETURN f.path AS path, f.ohash AS hash`, nil)
		if err != nil {
			return nil, err
		}
		hashes := make(map[string]string)
		for records.Next(ctx) {
			rec := records.Record()
			path, _ := rec.Get("path")
			hash, _ := rec.Get("hash")
			p, ok := path.(string)
			if !ok {
				continue
			}
			if h, ok := hash.(string); ok {
				hashes[p] = h
			} else {
				hashes[p] = ""
			}
		}
		return hashes, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read file hashes: %w", err)
	}
	return result.(map[string]string), nil
}

// SearchResult is one vector or fulltext search hit.
type SearchResult struct {
	Name      string  `json:"name"`
	Signature string  `json:"signature,omitempty"`
	Score     float64 `json:"score"`
	Text      string  `json:"text,omitempty"`
}

// VectorSearch finds the definitions whose chunk embeddings are closest
// to the query vector.
func (r *GraphReader) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.vector.queryNodes('code_embeddings', $limit, $vec)
			YIELD node, score
			MATCH (node)-[:DESCRIBES]->(target)
			RETURN target.name AS name,
			       coalesce(target.signature, target.qualified_name) AS sig,
			       score, node.text AS text
			ORDER BY score DESC
		`
		records, err := tx.Run(ctx, query, map[string]any{
			"limit": limit,
			"vec":   embedding,
		})
		if err != nil {
			return nil, err
		}
		return collectSearchResults(ctx, records)
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return result.([]SearchResult), nil
}

// FulltextSearch runs a keyword query over the name/docstring/path index.
func (r *GraphReader) FulltextSearch(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.fulltext.queryNodes('entity_text_search', $q, {limit: $limit})
			YIELD node, score
			RETURN node.name AS name,
			       coalesce(node.signature, node.qualified_name, node.path) AS sig,
			       score, node.docstring AS text
			ORDER BY score DESC
		`
		records, err := tx.Run(ctx, query, map[string]any{"q": text, "limit": limit})
		if err != nil {
			return nil, err
		}
		return collectSearchResults(ctx, records)
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return result.([]SearchResult), nil
}

func collectSearchResults(ctx context.Context, records neo4j.ResultWithContext) ([]SearchResult, error) {
	var results []SearchResult
	for records.Next(ctx) {
		rec := records.Record()
		res := SearchResult{}
		if v, _ := rec.Get("name"); v != nil {
			res.Name = fmt.Sprintf("%v", v)
		}
		if v, _ := rec.Get("sig"); v != nil {
			res.Signature = fmt.Sprintf("%v", v)
		}
		if v, _ := rec.Get("text"); v != nil {
			res.Text = fmt.Sprintf("%v", v)
		}
		if v, _ := rec.Get("score"); v != nil {
			switch s := v.(type) {
			case float64:
				res.Score = s
			case int64:
				res.Score = float64(s)
			}
		}
		results = append(results, res)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, records.Err()
}

// FileDependencies returns files this file imports and files importing it.
func (r *GraphReader) FileDependencies(ctx context.Context, path string) (imports, importedBy []string, err error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:File {path: $path})
			OPTIONAL MATCH (f)-[:IMPORTS]->(imported)
			OPTIONAL MATCH (dependent)-[:IMPORTS]->(f)
			RETURN collect(DISTINCT imported.path) AS imports,
			       collect(DISTINCT dependent.path) AS imported_by
		`
		records, err := tx.Run(ctx, query, map[string]any{"path": path})
		if err != nil {
			return nil, err
		}
		if records.Next(ctx) {
			rec := records.Record()
			out := [2][]string{}
			for i, key := range []string{"imports", "imported_by"} {
				if v, _ := rec.Get(key); v != nil {
					if list, ok := v.([]any); ok {
						for _, item := range list {
							if s, ok := item.(string); ok {
								out[i] = append(out[i], s)
							}
						}
					}
				}
			}
			return out, records.Err()
		}
		return [2][]string{}, records.Err()
	})
	if err != nil {
		return nil, nil, fmt.Errorf("file dependencies of %s: %w", path, err)
	}
	out := result.([2][]string)
	return out[0], out[1], nil
}

// ImpactEntry is one file in the blast radius of a change.
type ImpactEntry struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

// Impact returns all files transitively importing the given file, up to
// maxDepth IMPORTS hops.
func (r *GraphReader) Impact(ctx context.Context, path string, maxDepth int) ([]ImpactEntry, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Variable-length bounds cannot be parameterized in Cypher.
		query := fmt.Sprintf(`
			MATCH p = (f:File {path: $path})<-[:IMPORTS*1..%d]-(dependent)
			RETURN DISTINCT dependent.path AS path, length(p) AS depth
			ORDER BY depth, path
		`, maxDepth)
		records, err := tx.Run(ctx, query, map[string]any{"path": path})
		if err != nil {
			return nil, err
		}
		var entries []ImpactEntry
		for records.Next(ctx) {
			rec := records.Record()
			entry := ImpactEntry{}
			if v, _ := rec.Get("path"); v != nil {
				entry.Path, _ = v.(string)
			}
			if v, _ := rec.Get("depth"); v != nil {
				if d, ok := v.(int64); ok {
					entry.Depth = int(d)
				}
			}
			entries = append(entries, entry)
		}
		if entries == nil {
			entries = []ImpactEntry{}
		}
		return entries, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("impact of %s: %w", path, err)
	}
	return result.([]ImpactEntry), nil
}

// GraphCounts summarizes what the structural graph currently holds.
type GraphCounts struct {
	Files     int64 `json:"files"`
	Classes   int64 `json:"classes"`
	Functions int64 `json:"functions"`
	Chunks    int64 `json:"chunks"`
}

func (r *GraphReader) Counts(ctx context.Context) (*GraphCounts, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			RETURN count{ (f:File) } AS files,
			       count{ (c:Class) } AS classes,
			       count{ (fn:Function) } AS functions,
			       count{ (ch:Chunk) } AS chunks
		`
		records, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		counts := &GraphCounts{}
		if records.Next(ctx) {
			rec := records.Record()
			for key, dst := range map[string]*int64{
				"files": &counts.Files, "classes": &counts.Classes,
				"functions": &counts.Functions, "chunks": &counts.Chunks,
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
		return nil, fmt.Errorf("graph counts: %w", err)
	}
	return result.(*GraphCounts), nil
}
