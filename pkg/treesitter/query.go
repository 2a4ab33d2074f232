package treesitter

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Captures runs an s-expression pattern rooted at node and returns capture
// name -> nodes in document order. The root may be any subtree, which is
// what scope-bounded extraction relies on.
func Captures(pattern, ext string, node *sitter.Node, src []byte) (map[string][]*sitter.Node, error) {
	lang := LanguageFor(ext)
	if lang == nil {
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}

	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, node)

	captures := make(map[string][]*sitter.Node)
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)
		for _, c := range match.Captures {
			name := q.CaptureNameForId(c.Index)
			captures[name] = append(captures[name], c.Node)
		}
	}
	return captures, nil
}

// Matches is like Captures but keeps captures grouped per match, one
// map per pattern occurrence. A capture name maps to its first node in
// the match.
func Matches(pattern, ext string, node *sitter.Node, src []byte) ([]map[string]*sitter.Node, error) {
	lang := LanguageFor(ext)
	if lang == nil {
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}

	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	defer q.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, node)

	var matches []map[string]*sitter.Node
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, src)
		m := make(map[string]*sitter.Node, len(match.Captures))
		for _, c := range match.Captures {
			name := q.CaptureNameForId(c.Index)
			if _, seen := m[name]; !seen {
				m[name] = c.Node
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}
