package indexer

import (
	"fmt"

	"github.com/avolkov/codetwin/internal/models"
)

// DefaultMaxChunkChars bounds chunk text so a single oversized definition
// cannot blow the embedding model's context window.
const DefaultMaxChunkChars = 24000

const truncationMarker = "...[TRUNCATED]"

// ChunkText renders a definition as the text that gets embedded: a short
// location header so the vector carries file and class context, then the
// source code. Code beyond maxChars is cut and marked.
func ChunkText(def *models.Definition, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	var header string
	switch {
	case def.Kind == models.KindClass:
		header = fmt.Sprintf("Context: File %s > Class: %s", def.FilePath, def.Name)
	case def.ParentClass != "":
		header = fmt.Sprintf("Context: File %s > Class %s > Method: %s", def.FilePath, def.ParentClass, def.Name)
	default:
		header = fmt.Sprintf("Context: File %s > Function: %s", def.FilePath, def.Name)
	}

	code := def.Code
	if len(code) > maxChars {
		code = code[:maxChars] + truncationMarker
	}
	return header + "\n\n" + code
}
