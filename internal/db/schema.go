package db

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SetupSchema creates the uniqueness constraints, the vector index over
// chunk embeddings, and the fulltext index for keyword search. All
// statements are IF NOT EXISTS so re-running is safe.
func SetupSchema(ctx context.Context, client *Client, vectorDimensions int) error {
	queries := []string{
		"CREATE CONSTRAINT file_path_unique IF NOT EXISTS FOR (f:File) REQUIRE f.path IS UNIQUE",
		"CREATE CONSTRAINT function_sig_unique IF NOT EXISTS FOR (f:Function) REQUIRE f.signature IS UNIQUE",
		"CREATE CONSTRAINT class_name_unique IF NOT EXISTS FOR (c:Class) REQUIRE c.qualified_name IS UNIQUE",
		"CREATE CONSTRAINT env_var_name_unique IF NOT EXISTS FOR (v:EnvVar) REQUIRE v.name IS UNIQUE",
		"CREATE CONSTRAINT git_repo_id_unique IF NOT EXISTS FOR (r:GitRepo) REQUIRE r.repo_id IS UNIQUE",
		"CREATE CONSTRAINT git_commit_repo_sha_unique IF NOT EXISTS FOR (c:GitCommit) REQUIRE (c.repo_id, c.sha) IS UNIQUE",
		"CREATE CONSTRAINT git_author_repo_email_unique IF NOT EXISTS FOR (a:GitAuthor) REQUIRE (a.repo_id, a.email_norm) IS UNIQUE",
		"CREATE CONSTRAINT git_file_version_unique IF NOT EXISTS FOR (fv:GitFileVersion) REQUIRE (fv.repo_id, fv.sha, fv.path) IS UNIQUE",
		fmt.Sprintf(`
			CREATE VECTOR INDEX code_embeddings IF NOT EXISTS
			FOR (c:Chunk) ON (c.embedding)
			OPTIONS {indexConfig: {
				`+"`vector.dimensions`"+`: %d,
				`+"`vector.similarity_function`"+`: 'cosine'
			}}
		`, vectorDimensions),
		`
			CREATE FULLTEXT INDEX entity_text_search IF NOT EXISTS
			FOR (n:Function|Class|File) ON EACH [n.name, n.docstring, n.path]
		`,
	}

	for _, q := range queries {
		q := q
		_, err := client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, q, nil)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return nil
}
