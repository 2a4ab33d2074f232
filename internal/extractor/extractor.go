package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/avolkov/codetwin/internal/models"
	"github.com/avolkov/codetwin/pkg/treesitter"
)

// Queries per language family. Definition nodes are captured whole; names
// and other fields are read via field lookup so the same code path works
// across grammars.
const (
	pyDefQuery = `
		(class_definition) @class
		(function_definition) @function
	`
	jsDefQuery = `
		(class_declaration) @class
		(function_declaration) @function
	`
	goDefQuery = `
		(function_declaration) @function
		(method_declaration) @function
		(type_declaration (type_spec type: (struct_type))) @class
	`

	pyCallQuery = `(call function: (identifier) @name)`
	jsCallQuery = `(call_expression function: (identifier) @name)`
	goCallQuery = `(call_expression function: (identifier) @name)`

	pyImportQuery = `
		(import_statement name: (dotted_name) @module)
		(import_from_statement module_name: (dotted_name) @module)
	`

	pyEnvReadQuery = `
		(call
			function: (attribute
				object: (_) @obj
				attribute: (identifier) @method)
			arguments: (argument_list
				(string) @var_name)) @env_call
	`
	pyEnvLoadQuery = `
		(call
			function: (identifier) @func
			arguments: (argument_list)) @load_call
	`
)

// Extractor maps one file's syntax tree into typed graph facts.
type Extractor struct {
	parser *treesitter.Parser
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		parser: treesitter.NewParser(),
		logger: logger,
	}
}

// Extract parses content and returns the file's definitions, import
// tokens, scope-bounded call facts, and env usage facts. Partial trees
// from malformed source are extracted best-effort; nodes missing expected
// fields are skipped, never fatal.
func (e *Extractor) Extract(ctx context.Context, content []byte, ext, relPath string) (*models.FileFacts, error) {
	tree, err := e.parser.Parse(ctx, content, ext)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	facts := &models.FileFacts{Path: relPath}

	e.extractDefinitions(root, content, ext, relPath, facts)
	e.extractCalls(root, content, ext, facts)

	if ext == ".py" {
		e.extractImports(root, content, ext, facts)
		e.extractEnvUsage(root, content, ext, facts)
	}

	return facts, nil
}

func defQueryFor(ext string) string {
	switch ext {
	case ".py":
		return pyDefQuery
	case ".go":
		return goDefQuery
	default:
		return jsDefQuery
	}
}

func callQueryFor(ext string) string {
	switch ext {
	case ".py":
		return pyCallQuery
	case ".go":
		return goCallQuery
	default:
		return jsCallQuery
	}
}

func (e *Extractor) extractDefinitions(root *sitter.Node, content []byte, ext, relPath string, facts *models.FileFacts) {
	captures, err := treesitter.Captures(defQueryFor(ext), ext, root, content)
	if err != nil {
		e.logger.Error("definition query failed", "path", relPath, "error", err)
		return
	}

	// Classes first so method linking always finds its owner.
	var classes, functions []models.Definition

	for _, node := range captures["class"] {
		name := definitionName(node, content)
		if name == "" {
			continue
		}
		classes = append(classes, models.Definition{
			Kind:      models.KindClass,
			Name:      name,
			Signature: relPath + ":" + name,
			FilePath:  relPath,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Docstring: docstring(node, content, ext),
			Code:      node.Content(content),
		})
	}

	for _, node := range captures["function"] {
		name := definitionName(node, content)
		if name == "" {
			continue
		}
		def := models.Definition{
			Kind:        models.KindFunction,
			Name:        name,
			ParentClass: parentClass(node, content, ext),
			FilePath:    relPath,
			StartLine:   int(node.StartPoint().Row) + 1,
			EndLine:     int(node.EndPoint().Row) + 1,
			Docstring:   docstring(node, content, ext),
			Params:      fieldContent(node, "parameters", content),
			ReturnType:  returnType(node, content, ext),
			Code:        node.Content(content),
		}
		def.Signature = relPath + ":" + def.QualifiedName()
		functions = append(functions, def)
	}

	facts.Definitions = append(facts.Definitions, classes...)
	facts.Definitions = append(facts.Definitions, functions...)
}

// extractCalls re-runs the call query rooted at each function definition's
// own subtree, so a callee name inside function A produces a fact only for
// A. Self-calls are suppressed; callees are deduplicated per caller.
func (e *Extractor) extractCalls(root *sitter.Node, content []byte, ext string, facts *models.FileFacts) {
	captures, err := treesitter.Captures(defQueryFor(ext), ext, root, content)
	if err != nil {
		return
	}

	pattern := callQueryFor(ext)
	for _, defNode := range captures["function"] {
		name := definitionName(defNode, content)
		if name == "" {
			continue
		}
		parent := parentClass(defNode, content, ext)
		callerSig := facts.Path + ":" + name
		if parent != "" {
			callerSig = facts.Path + ":" + parent + "." + name
		}

		callCaptures, err := treesitter.Captures(pattern, ext, defNode, content)
		if err != nil {
			continue
		}
		seen := make(map[string]bool)
		for _, callNode := range callCaptures["name"] {
			callee := callNode.Content(content)
			if callee == "" || callee == name || seen[callee] {
				continue
			}
			seen[callee] = true
			facts.Calls = append(facts.Calls, models.CallFact{
				CallerSignature: callerSig,
				Callee:          callee,
			})
		}
	}
}

func (e *Extractor) extractImports(root *sitter.Node, content []byte, ext string, facts *models.FileFacts) {
	captures, err := treesitter.Captures(pyImportQuery, ext, root, content)
	if err != nil {
		e.logger.Error("import query failed", "path", facts.Path, "error", err)
		return
	}
	for _, node := range captures["module"] {
		facts.Imports = append(facts.Imports, models.ImportFact{
			Module: node.Content(content),
			Line:   int(node.StartPoint().Row) + 1,
		})
	}
}

func (e *Extractor) extractEnvUsage(root *sitter.Node, content []byte, ext string, facts *models.FileFacts) {
	matches, err := treesitter.Matches(pyEnvReadQuery, ext, root, content)
	if err == nil {
		for _, m := range matches {
			methodNode, varNode, objNode := m["method"], m["var_name"], m["obj"]
			if methodNode == nil || varNode == nil || objNode == nil {
				continue
			}
			// os.getenv("X"), os.environ.get("X"); plain dict .get calls
			// don't count.
			method := methodNode.Content(content)
			obj := objNode.Content(content)
			readsEnv := (method == "getenv" && obj == "os") ||
				(method == "get" && strings.HasSuffix(obj, "environ"))
			if !readsEnv {
				continue
			}
			facts.EnvVars = append(facts.EnvVars, models.EnvFact{
				Kind: models.EnvRead,
				Name: strings.Trim(varNode.Content(content), `'"`),
				Line: int(methodNode.StartPoint().Row) + 1,
			})
		}
	}

	matches, err = treesitter.Matches(pyEnvLoadQuery, ext, root, content)
	if err == nil {
		for _, m := range matches {
			funcNode := m["func"]
			if funcNode == nil || funcNode.Content(content) != "load_dotenv" {
				continue
			}
			facts.EnvVars = append(facts.EnvVars, models.EnvFact{
				Kind: models.EnvLoad,
				Line: int(funcNode.StartPoint().Row) + 1,
			})
		}
	}
}

// definitionName resolves the name of a captured definition node across
// grammars: a "name" field where available, the type_spec name for Go
// struct declarations, otherwise the first identifier child.
func definitionName(node *sitter.Node, content []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(content)
	}
	if node.Type() == "type_declaration" {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child != nil && child.Type() == "type_spec" {
				if n := child.ChildByFieldName("name"); n != nil {
					return n.Content(content)
				}
			}
		}
		return ""
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child != nil && (child.Type() == "identifier" || child.Type() == "type_identifier") {
			return child.Content(content)
		}
	}
	return ""
}

// parentClass walks up to the nearest class ancestor and stops there.
// Intervening function ancestors do not break the walk, so a function
// nested inside another function inside a class is still tagged with the
// class. Known heuristic limitation, kept on purpose.
func parentClass(node *sitter.Node, content []byte, ext string) string {
	if ext == ".go" {
		return goReceiverType(node, content)
	}
	for current := node.Parent(); current != nil; current = current.Parent() {
		t := current.Type()
		if t == "class_definition" || t == "class_declaration" {
			if name := definitionName(current, content); name != "" {
				return name
			}
		}
	}
	return ""
}

// goReceiverType reads the receiver type of a Go method declaration,
// which plays the owning-class role in this data model.
func goReceiverType(node *sitter.Node, content []byte) string {
	if node.Type() != "method_declaration" {
		return ""
	}
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || found != "" {
			return
		}
		if n.Type() == "type_identifier" {
			found = n.Content(content)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(recv)
	return found
}

func fieldContent(node *sitter.Node, field string, content []byte) string {
	if n := node.ChildByFieldName(field); n != nil {
		return n.Content(content)
	}
	return ""
}

func returnType(node *sitter.Node, content []byte, ext string) string {
	if ext == ".go" {
		return fieldContent(node, "result", content)
	}
	return strings.TrimPrefix(fieldContent(node, "return_type", content), ": ")
}

// docstring reads the Python docstring (first body statement when it is a
// bare string literal) or, for other languages, the comment immediately
// preceding the definition.
func docstring(node *sitter.Node, content []byte, ext string) string {
	if ext == ".py" {
		return pythonDocstring(node, content)
	}
	return precedingComment(node, content)
}

func pythonDocstring(node *sitter.Node, content []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr == nil || expr.Type() != "string" {
		return ""
	}
	s := expr.Content(content)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func precedingComment(node *sitter.Node, content []byte) string {
	prev := node.PrevSibling()
	if prev == nil {
		return ""
	}
	switch prev.Type() {
	case "comment", "line_comment", "block_comment":
		c := prev.Content(content)
		c = strings.TrimPrefix(c, "//")
		c = strings.TrimPrefix(c, "/*")
		c = strings.TrimSuffix(c, "*/")
		c = strings.TrimPrefix(c, "#")
		return strings.TrimSpace(c)
	}
	return ""
}
