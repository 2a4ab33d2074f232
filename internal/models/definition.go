package models

import "strings"

type DefinitionKind string

const (
	KindClass    DefinitionKind = "class"
	KindFunction DefinitionKind = "function"
)

// Definition is a class or function extracted from one file. Signature is
// the natural key: "<path>:<qualifiedName>", where qualifiedName is
// "Class.name" for methods and "name" otherwise.
type Definition struct {
	Kind        DefinitionKind `json:"kind"`
	Name        string         `json:"name"`
	ParentClass string         `json:"parentClass,omitempty"`
	Signature   string         `json:"signature"`
	FilePath    string         `json:"filePath"`
	StartLine   int            `json:"startLine"`
	EndLine     int            `json:"endLine"`
	Docstring   string         `json:"docstring,omitempty"`
	Params      string         `json:"params,omitempty"`
	ReturnType  string         `json:"returnType,omitempty"`
	Code        string         `json:"code,omitempty"`
}

// QualifiedName returns "Class.name" for methods, "name" otherwise.
func (d *Definition) QualifiedName() string {
	if d.ParentClass != "" {
		return d.ParentClass + "." + d.Name
	}
	return d.Name
}

// ImportFact is an unresolved module token from an import statement.
// Resolution into IMPORTS edges happens at upsert time.
type ImportFact struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
}

// ImportPathFragment converts a dotted module token into the path
// fragment used for heuristic IMPORTS matching, e.g.
// "command_service.app" -> "command_service/app".
func ImportPathFragment(module string) string {
	return strings.ReplaceAll(module, ".", "/")
}

// CallFact is a heuristic, name-only call edge candidate attributed to the
// enclosing definition's subtree.
type CallFact struct {
	CallerSignature string `json:"callerSignature"`
	Callee          string `json:"callee"`
}

type EnvUsageKind string

const (
	EnvRead EnvUsageKind = "read"
	EnvLoad EnvUsageKind = "load"
)

// EnvFact records that a file reads a named environment variable or loads
// an env file. Values are never captured.
type EnvFact struct {
	Kind EnvUsageKind `json:"kind"`
	Name string       `json:"name,omitempty"`
	Line int          `json:"line"`
}

// FileFacts is the complete typed output of extracting one file.
type FileFacts struct {
	Path        string
	Definitions []Definition
	Imports     []ImportFact
	Calls       []CallFact
	EnvVars     []EnvFact
}
