package treesitter

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps per-language tree-sitter parsers behind a single entry
// point. The underlying parsers are not thread-safe, so each language is
// backed by a sync.Pool and concurrent callers get independent instances.
type Parser struct {
	pools map[string]*sync.Pool
}

func NewParser() *Parser {
	p := &Parser{pools: make(map[string]*sync.Pool, len(languages))}
	for ext, lang := range languages {
		lang := lang
		p.pools[ext] = &sync.Pool{
			New: func() any {
				sp := sitter.NewParser()
				sp.SetLanguage(lang)
				return sp
			},
		}
	}
	return p
}

// Parse parses source content for the given file extension. Malformed
// source still yields a tree; tree-sitter recovers with error nodes, so
// callers can extract whatever structure survived.
func (p *Parser) Parse(ctx context.Context, content []byte, ext string) (*sitter.Tree, error) {
	pool, ok := p.pools[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported extension: %s", ext)
	}

	sp := pool.Get().(*sitter.Parser)
	defer pool.Put(sp)

	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree, nil
}
