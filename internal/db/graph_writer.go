package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/avolkov/codetwin/internal/models"
)

// GraphWriter applies extractor output as idempotent merge-by-natural-key
// operations. Re-running the same input never creates duplicate nodes or
// duplicate DEFINES/HAS_METHOD/DESCRIBES edges; conflict resolution for
// identical keys is owned by the store's merge semantics.
type GraphWriter struct {
	client *Client
}

func NewGraphWriter(client *Client) *GraphWriter {
	return &GraphWriter{client: client}
}

func defKey(def *models.Definition) (label, keyProp string) {
	if def.Kind == models.KindClass {
		return "Class", "qualified_name"
	}
	return "Function", "signature"
}

// UpsertFile creates or updates the File node for a path.
func (w *GraphWriter) UpsertFile(ctx context.Context, path, name, hash string) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (f:File {path: $path})
			SET f.name = $name,
			    f.ohash = $ohash,
			    f.last_updated = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"path":  path,
			"name":  name,
			"ohash": hash,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", path, err)
	}
	return nil
}

// DeleteFileDefinitions removes everything a file owns: its definitions,
// their chunks, and its outgoing IMPORTS and env edges. The File node
// itself is preserved and re-used.
func (w *GraphWriter) DeleteFileDefinitions(ctx context.Context, path string) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		queries := []string{
			`
				MATCH (f:File {path: $path})-[:DEFINES]->(entity)
				OPTIONAL MATCH (chunk:Chunk)-[:DESCRIBES]->(entity)
				DETACH DELETE chunk, entity
			`,
			`MATCH (f:File {path: $path})-[r:IMPORTS]->() DELETE r`,
			`MATCH (f:File {path: $path})-[r:READS_ENV|LOADS_ENV]->() DELETE r`,
		}
		for _, q := range queries {
			if _, err := tx.Run(ctx, q, map[string]any{"path": path}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("delete definitions of %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes a file node and everything it defines. Used when the
// file disappeared from disk.
func (w *GraphWriter) DeleteFile(ctx context.Context, path string) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (f:File {path: $path})
			OPTIONAL MATCH (f)-[:DEFINES]->(entity)
			OPTIONAL MATCH (chunk:Chunk)-[:DESCRIBES]->(entity)
			DETACH DELETE chunk, entity, f
		`
		_, err := tx.Run(ctx, query, map[string]any{"path": path})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("delete file %s: %w", path, err)
	}
	return nil
}

// UpsertDefinition merges a Class or Function node by its natural key,
// links it to the owning file, and links methods to their owning class.
func (w *GraphWriter) UpsertDefinition(ctx context.Context, def *models.Definition) error {
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		label, keyProp := defKey(def)
		query := fmt.Sprintf(`
			MATCH (f:File {path: $path})
			MERGE (n:%s {%s: $sig})
			SET n.name = $name,
			    n.code = $code,
			    n.docstring = $docstring,
			    n.params = $params,
			    n.return_type = $returnType,
			    n.start_line = $startLine,
			    n.end_line = $endLine
			MERGE (f)-[:DEFINES]->(n)
		`, label, keyProp)
		_, err := tx.Run(ctx, query, map[string]any{
			"path":       def.FilePath,
			"sig":        def.Signature,
			"name":       def.Name,
			"code":       def.Code,
			"docstring":  def.Docstring,
			"params":     def.Params,
			"returnType": def.ReturnType,
			"startLine":  def.StartLine,
			"endLine":    def.EndLine,
		})
		if err != nil {
			return nil, err
		}

		if def.Kind == models.KindFunction && def.ParentClass != "" {
			classSig := def.FilePath + ":" + def.ParentClass
			linkQuery := `
				MATCH (c:Class {qualified_name: $csig})
				MATCH (fn:Function {signature: $fsig})
				MERGE (c)-[:HAS_METHOD]->(fn)
			`
			if _, err := tx.Run(ctx, linkQuery, map[string]any{
				"csig": classSig,
				"fsig": def.Signature,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert definition %s: %w", def.Signature, err)
	}
	return nil
}

// HasChunk reports whether a DESCRIBES chunk already exists for the
// definition. Checked before every embedding to avoid duplicate spend.
func (w *GraphWriter) HasChunk(ctx context.Context, def *models.Definition) (bool, error) {
	label, keyProp := defKey(def)
	result, err := w.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s {%s: $sig})
			OPTIONAL MATCH (ch:Chunk)-[:DESCRIBES]->(n)
			RETURN ch.id AS chunk_id LIMIT 1
		`, label, keyProp)
		records, err := tx.Run(ctx, query, map[string]any{"sig": def.Signature})
		if err != nil {
			return nil, err
		}
		if records.Next(ctx) {
			chunkID, _ := records.Record().Get("chunk_id")
			return chunkID != nil, records.Err()
		}
		return false, records.Err()
	})
	if err != nil {
		return false, fmt.Errorf("chunk lookup for %s: %w", def.Signature, err)
	}
	return result.(bool), nil
}

// CreateChunk stores the embedding-bearing chunk for a definition.
func (w *GraphWriter) CreateChunk(ctx context.Context, def *models.Definition, text string, embedding []float32) error {
	label, keyProp := defKey(def)
	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s {%s: $sig})
			CREATE (ch:Chunk {id: $id})
			SET ch.text = $text,
			    ch.embedding = $embedding,
			    ch.created_at = datetime()
			MERGE (ch)-[:DESCRIBES]->(n)
		`, label, keyProp)
		_, err := tx.Run(ctx, query, map[string]any{
			"sig":       def.Signature,
			"id":        uuid.New().String(),
			"text":      text,
			"embedding": embedding,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("create chunk for %s: %w", def.Signature, err)
	}
	return nil
}

// LinkImports converts each module token to a path fragment and links the
// source file to every file whose path contains it. Deliberately
// permissive; zero matches leave the fact unlinked.
func (w *GraphWriter) LinkImports(ctx context.Context, path string, imports []models.ImportFact) error {
	if len(imports) == 0 {
		return nil
	}
	fragments := make([]string, 0, len(imports))
	for _, imp := range imports {
		fragments = append(fragments, models.ImportPathFragment(imp.Module))
	}

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $fragments AS fragment
			MATCH (source:File {path: $src})
			MATCH (target:File)
			WHERE target.path CONTAINS fragment AND target <> source
			MERGE (source)-[:IMPORTS]->(target)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"src":       path,
			"fragments": fragments,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("link imports of %s: %w", path, err)
	}
	return nil
}

// LinkCalls links callers to every same-named function in the graph.
// Name-based only; ambiguous names fan out to all matches.
func (w *GraphWriter) LinkCalls(ctx context.Context, calls []models.CallFact) error {
	if len(calls) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, map[string]any{"caller": c.CallerSignature, "callee": c.Callee})
	}

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $calls AS call
			MATCH (caller:Function {signature: call.caller})
			MATCH (callee:Function {name: call.callee})
			WHERE caller <> callee
			MERGE (caller)-[:CALLS]->(callee)
		`
		_, err := tx.Run(ctx, query, map[string]any{"calls": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("link calls: %w", err)
	}
	return nil
}

// UpsertEnvFacts records env-var reads and env-file loads for a file.
// Only names and line numbers are stored, never values.
func (w *GraphWriter) UpsertEnvFacts(ctx context.Context, path string, facts []models.EnvFact) error {
	if len(facts) == 0 {
		return nil
	}
	var reads, loads []map[string]any
	for _, f := range facts {
		switch f.Kind {
		case models.EnvRead:
			reads = append(reads, map[string]any{"name": f.Name, "line": f.Line})
		case models.EnvLoad:
			loads = append(loads, map[string]any{"line": f.Line})
		}
	}

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(reads) > 0 {
			query := `
				UNWIND $reads AS r
				MATCH (f:File {path: $path})
				MERGE (v:EnvVar {name: r.name})
				MERGE (f)-[rel:READS_ENV]->(v)
				SET rel.line = r.line
			`
			if _, err := tx.Run(ctx, query, map[string]any{"path": path, "reads": reads}); err != nil {
				return nil, err
			}
		}
		if len(loads) > 0 {
			query := `
				UNWIND $loads AS l
				MATCH (f:File {path: $path})
				MERGE (ef:EnvFile {path: '.env'})
				MERGE (f)-[rel:LOADS_ENV]->(ef)
				SET rel.line = l.line
			`
			if _, err := tx.Run(ctx, query, map[string]any{"path": path, "loads": loads}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert env facts of %s: %w", path, err)
	}
	return nil
}
