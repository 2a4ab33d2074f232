package extractor

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/avolkov/codetwin/internal/models"
)

func newTestExtractor() *Extractor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(logger)
}

func extract(t *testing.T, source, ext, path string) *models.FileFacts {
	t.Helper()
	facts, err := newTestExtractor().Extract(context.Background(), []byte(source), ext, path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return facts
}

func findDef(facts *models.FileFacts, signature string) *models.Definition {
	for i := range facts.Definitions {
		if facts.Definitions[i].Signature == signature {
			return &facts.Definitions[i]
		}
	}
	return nil
}

func TestExtract_PythonDefinitions(t *testing.T) {
	source := `class UserService:
    """Manages user accounts."""

    def load(self, user_id) -> str:
        """Load one user."""
        return fetch(user_id)

def top_level(a, b):
    return a + b
`
	facts := extract(t, source, ".py", "service.py")

	class := findDef(facts, "service.py:UserService")
	if class == nil {
		t.Fatal("expected class definition")
	}
	if class.Kind != models.KindClass {
		t.Errorf("expected class kind, got %s", class.Kind)
	}
	if class.Docstring != "Manages user accounts." {
		t.Errorf("unexpected class docstring: %q", class.Docstring)
	}
	if class.StartLine != 1 {
		t.Errorf("expected class to start at line 1, got %d", class.StartLine)
	}

	method := findDef(facts, "service.py:UserService.load")
	if method == nil {
		t.Fatal("expected method definition keyed by class-qualified name")
	}
	if method.ParentClass != "UserService" {
		t.Errorf("expected parent class UserService, got %q", method.ParentClass)
	}
	if method.Params != "(self, user_id)" {
		t.Errorf("unexpected params: %q", method.Params)
	}
	if method.ReturnType != "str" {
		t.Errorf("unexpected return type: %q", method.ReturnType)
	}
	if method.Docstring != "Load one user." {
		t.Errorf("unexpected method docstring: %q", method.Docstring)
	}

	fn := findDef(facts, "service.py:top_level")
	if fn == nil {
		t.Fatal("expected top-level function")
	}
	if fn.ParentClass != "" {
		t.Errorf("expected no parent class, got %q", fn.ParentClass)
	}
	if fn.Code == "" || fn.EndLine <= fn.StartLine {
		t.Errorf("expected code span, got lines %d-%d", fn.StartLine, fn.EndLine)
	}
}

func TestExtract_ClassesPrecedeFunctions(t *testing.T) {
	source := `def early():
    pass

class Later:
    def inner(self):
        pass
`
	facts := extract(t, source, ".py", "order.py")
	if len(facts.Definitions) < 3 {
		t.Fatalf("expected 3 definitions, got %d", len(facts.Definitions))
	}
	if facts.Definitions[0].Kind != models.KindClass {
		t.Errorf("expected class first, got %s %s", facts.Definitions[0].Kind, facts.Definitions[0].Name)
	}
}

func TestExtract_PythonCallsAreScopeBounded(t *testing.T) {
	source := `def alpha():
    beta()
    gamma()
    gamma()

def beta():
    delta()
`
	facts := extract(t, source, ".py", "calls.py")

	byCaller := make(map[string][]string)
	for _, c := range facts.Calls {
		byCaller[c.CallerSignature] = append(byCaller[c.CallerSignature], c.Callee)
	}

	alpha := byCaller["calls.py:alpha"]
	if len(alpha) != 2 {
		t.Fatalf("expected alpha to call 2 distinct names, got %v", alpha)
	}
	// A callee inside beta must never be attributed to alpha.
	for _, callee := range alpha {
		if callee == "delta" {
			t.Error("call inside beta leaked into alpha's scope")
		}
	}
	if got := byCaller["calls.py:beta"]; len(got) != 1 || got[0] != "delta" {
		t.Errorf("expected beta to call delta, got %v", got)
	}
}

func TestExtract_SelfCallsSuppressed(t *testing.T) {
	source := `def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)
`
	facts := extract(t, source, ".py", "fib.py")
	for _, c := range facts.Calls {
		if c.Callee == "fib" {
			t.Error("expected recursive self-call to be suppressed")
		}
	}
}

func TestExtract_PythonImports(t *testing.T) {
	source := `import os
import utils.helpers
from models.user import User

def noop():
    pass
`
	facts := extract(t, source, ".py", "app.py")

	modules := make(map[string]int)
	for _, imp := range facts.Imports {
		modules[imp.Module] = imp.Line
	}
	if modules["os"] != 1 {
		t.Errorf("expected os at line 1, got %v", modules)
	}
	if _, ok := modules["utils.helpers"]; !ok {
		t.Errorf("expected dotted import, got %v", modules)
	}
	if _, ok := modules["models.user"]; !ok {
		t.Errorf("expected from-import module, got %v", modules)
	}
}

func TestExtract_PythonEnvUsage(t *testing.T) {
	source := `import os
from dotenv import load_dotenv

load_dotenv()

def setup(cache):
    key = os.getenv("API_KEY")
    url = os.environ.get("DATABASE_URL")
    other = cache.get("not_env")
`
	facts := extract(t, source, ".py", "settings.py")

	reads := make(map[string]bool)
	loads := 0
	for _, env := range facts.EnvVars {
		switch env.Kind {
		case models.EnvRead:
			reads[env.Name] = true
		case models.EnvLoad:
			loads++
		}
	}
	if !reads["API_KEY"] || !reads["DATABASE_URL"] {
		t.Errorf("expected API_KEY and DATABASE_URL reads, got %v", reads)
	}
	if reads["not_env"] {
		t.Error("plain dict .get must not count as env read")
	}
	if loads != 1 {
		t.Errorf("expected 1 load_dotenv fact, got %d", loads)
	}
}

func TestExtract_JavaScript(t *testing.T) {
	source := `// Validates incoming payloads
function validate(payload) {
  normalize(payload);
  return payload;
}

class Router {
  dispatch(req) {
    return handle(req);
  }
}
`
	facts := extract(t, source, ".js", "router.js")

	fn := findDef(facts, "router.js:validate")
	if fn == nil {
		t.Fatal("expected function declaration")
	}
	if fn.Docstring != "Validates incoming payloads" {
		t.Errorf("unexpected docstring from preceding comment: %q", fn.Docstring)
	}

	class := findDef(facts, "router.js:Router")
	if class == nil {
		t.Fatal("expected class declaration")
	}

	var validateCalls []string
	for _, c := range facts.Calls {
		if c.CallerSignature == "router.js:validate" {
			validateCalls = append(validateCalls, c.Callee)
		}
	}
	if len(validateCalls) != 1 || validateCalls[0] != "normalize" {
		t.Errorf("expected validate -> normalize, got %v", validateCalls)
	}
}

func TestExtract_TypeScript(t *testing.T) {
	source := `class Store {
  save(item: Item): void {
    persist(item);
  }
}

function persist(item: Item): void {}
`
	facts := extract(t, source, ".ts", "store.ts")

	if findDef(facts, "store.ts:Store") == nil {
		t.Error("expected TypeScript class definition")
	}
	if findDef(facts, "store.ts:persist") == nil {
		t.Error("expected TypeScript function definition")
	}
}

func TestExtract_Go(t *testing.T) {
	source := `package cache

// Entry is one cached value.
type Entry struct {
	Key string
}

func hashKey(key string) uint64 {
	return fnv(key)
}

func (e *Entry) Refresh() error {
	return reload(e.Key)
}
`
	facts := extract(t, source, ".go", "cache/entry.go")

	entry := findDef(facts, "cache/entry.go:Entry")
	if entry == nil {
		t.Fatal("expected struct to surface as class definition")
	}
	if entry.Kind != models.KindClass {
		t.Errorf("expected class kind, got %s", entry.Kind)
	}

	fn := findDef(facts, "cache/entry.go:hashKey")
	if fn == nil {
		t.Fatal("expected function declaration")
	}
	if fn.ReturnType != "uint64" {
		t.Errorf("unexpected return type: %q", fn.ReturnType)
	}

	method := findDef(facts, "cache/entry.go:Entry.Refresh")
	if method == nil {
		t.Fatal("expected method keyed by receiver type")
	}
	if method.ParentClass != "Entry" {
		t.Errorf("expected receiver type Entry, got %q", method.ParentClass)
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	_, err := newTestExtractor().Extract(context.Background(), []byte("hello"), ".txt", "notes.txt")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestExtract_MalformedSourceIsBestEffort(t *testing.T) {
	source := `def good():
    pass

def broken(
`
	facts := extract(t, source, ".py", "broken.py")
	if findDef(facts, "broken.py:good") == nil {
		t.Error("expected intact definitions from a partial tree")
	}
}

func TestExtract_NestedFunctionKeepsClassOwner(t *testing.T) {
	source := `class Outer:
    def method(self):
        def closure():
            helper()
        return closure
`
	facts := extract(t, source, ".py", "nested.py")

	closure := findDef(facts, "nested.py:Outer.closure")
	if closure == nil {
		t.Fatal("expected nested function tagged with nearest class ancestor")
	}
	if closure.ParentClass != "Outer" {
		t.Errorf("expected Outer, got %q", closure.ParentClass)
	}
}
