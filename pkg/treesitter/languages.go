package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var languages = map[string]*sitter.Language{
	".py":  python.GetLanguage(),
	".js":  javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".ts":  typescript.GetLanguage(),
	".tsx": tsx.GetLanguage(),
	".go":  golang.GetLanguage(),
}

// LanguageFor returns the tree-sitter language for a file extension,
// or nil if the extension is not supported.
func LanguageFor(ext string) *sitter.Language {
	return languages[ext]
}

func Supported(ext string) bool {
	_, ok := languages[ext]
	return ok
}

func SupportedExtensions() []string {
	exts := make([]string, 0, len(languages))
	for ext := range languages {
		exts = append(exts, ext)
	}
	return exts
}
