package treesitter

import (
	"context"
	"sync"
	"testing"
)

func TestParse_AllLanguages(t *testing.T) {
	p := NewParser()
	sources := map[string]string{
		".py":  "def f():\n    pass\n",
		".js":  "function f() {}\n",
		".jsx": "function f() { return <div/>; }\n",
		".ts":  "function f(x: number): number { return x; }\n",
		".tsx": "function f() { return <div/>; }\n",
		".go":  "package p\n\nfunc f() {}\n",
	}
	for ext, src := range sources {
		tree, err := p.Parse(context.Background(), []byte(src), ext)
		if err != nil {
			t.Errorf("%s: parse failed: %v", ext, err)
			continue
		}
		if tree.RootNode() == nil {
			t.Errorf("%s: nil root node", ext)
		}
		tree.Close()
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse(context.Background(), []byte("x"), ".rb"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestParse_MalformedSourceStillYieldsTree(t *testing.T) {
	p := NewParser()
	tree, err := p.Parse(context.Background(), []byte("def broken(\n"), ".py")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	defer tree.Close()
	if tree.RootNode() == nil {
		t.Fatal("expected a recovered tree for malformed source")
	}
}

func TestParse_ConcurrentSameLanguage(t *testing.T) {
	p := NewParser()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tree, err := p.Parse(context.Background(), []byte("def f():\n    pass\n"), ".py")
				if err != nil {
					t.Errorf("parse failed: %v", err)
					return
				}
				tree.Close()
			}
		}()
	}
	wg.Wait()
}

func TestCaptures_RootedAtSubtree(t *testing.T) {
	src := []byte(`def outer():
    inner()

def other():
    unrelated()
`)
	p := NewParser()
	tree, err := p.Parse(context.Background(), src, ".py")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	defer tree.Close()

	defs, err := Captures(`(function_definition) @fn`, ".py", tree.RootNode(), src)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(defs["fn"]) != 2 {
		t.Fatalf("expected 2 function definitions, got %d", len(defs["fn"]))
	}

	// Query the first function's subtree only; the second function's call
	// must not appear.
	calls, err := Captures(`(call function: (identifier) @name)`, ".py", defs["fn"][0], src)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(calls["name"]) != 1 {
		t.Fatalf("expected 1 call in subtree, got %d", len(calls["name"]))
	}
	if got := calls["name"][0].Content(src); got != "inner" {
		t.Errorf("expected inner, got %q", got)
	}
}

func TestCaptures_InvalidPattern(t *testing.T) {
	src := []byte("def f():\n    pass\n")
	p := NewParser()
	tree, err := p.Parse(context.Background(), src, ".py")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	defer tree.Close()

	if _, err := Captures(`(nonsense`, ".py", tree.RootNode(), src); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestMatches_GroupsCapturesPerOccurrence(t *testing.T) {
	src := []byte(`import os

key = os.getenv("A")
url = os.getenv("B")
`)
	p := NewParser()
	tree, err := p.Parse(context.Background(), src, ".py")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	defer tree.Close()

	pattern := `
		(call
			function: (attribute
				object: (_) @obj
				attribute: (identifier) @method)
			arguments: (argument_list
				(string) @arg))
	`
	matches, err := Matches(pattern, ".py", tree.RootNode(), src)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	for i, want := range []string{`"A"`, `"B"`} {
		if matches[i]["obj"].Content(src) != "os" {
			t.Errorf("match %d: unexpected object %q", i, matches[i]["obj"].Content(src))
		}
		if got := matches[i]["arg"].Content(src); got != want {
			t.Errorf("match %d: expected %s, got %q", i, want, got)
		}
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".py", ".js", ".jsx", ".ts", ".tsx", ".go"} {
		if !Supported(ext) {
			t.Errorf("expected %s to be supported", ext)
		}
	}
	if Supported(".rb") {
		t.Error("expected .rb to be unsupported")
	}
	if LanguageFor(".rb") != nil {
		t.Error("expected nil language for .rb")
	}
	if len(SupportedExtensions()) != 6 {
		t.Errorf("expected 6 extensions, got %d", len(SupportedExtensions()))
	}
}
