package gitingest

import (
	"testing"
)

func TestParseCommitMeta(t *testing.T) {
	raw := "abc123\x1fdef456\x1f2024-05-01T10:00:00+02:00\x1f2024-05-01T10:05:00+02:00\x1fAda Lovelace\x1fAda@Example.COM\x1fAdd parser\x1fLonger body\nwith two lines\n"

	record, err := parseCommitMeta(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.SHA != "abc123" {
		t.Errorf("expected sha abc123, got %s", record.SHA)
	}
	if record.ParentCount != 1 || record.IsMerge {
		t.Errorf("expected single-parent non-merge, got %d parents merge=%v", record.ParentCount, record.IsMerge)
	}
	if record.AuthorEmail != "ada@example.com" {
		t.Errorf("expected normalized email, got %s", record.AuthorEmail)
	}
	if record.Subject != "Add parser" {
		t.Errorf("expected subject, got %q", record.Subject)
	}
	if record.Body != "Longer body\nwith two lines" {
		t.Errorf("expected trimmed body, got %q", record.Body)
	}
}

func TestParseCommitMeta_MergeAndRoot(t *testing.T) {
	merge := "abc\x1fp1 p2\x1f2024-01-01T00:00:00Z\x1f2024-01-01T00:00:00Z\x1fA\x1fa@b.c\x1fMerge branch\x1f"
	record, err := parseCommitMeta(merge)
	if err != nil {
		t.Fatal(err)
	}
	if record.ParentCount != 2 || !record.IsMerge {
		t.Errorf("expected merge with 2 parents, got %d", record.ParentCount)
	}

	root := "abc\x1f\x1f2024-01-01T00:00:00Z\x1f2024-01-01T00:00:00Z\x1fA\x1fa@b.c\x1fInitial\x1f"
	record, err = parseCommitMeta(root)
	if err != nil {
		t.Fatal(err)
	}
	if record.ParentCount != 0 || record.IsMerge {
		t.Errorf("expected root commit, got %d parents", record.ParentCount)
	}
}

func TestParseCommitMeta_Malformed(t *testing.T) {
	if _, err := parseCommitMeta("just one field"); err == nil {
		t.Fatal("expected error for malformed metadata")
	}
}

func TestParseNumstat(t *testing.T) {
	out := "10\t2\tsrc/app.py\n-\t-\tassets/logo.png\n3\t1\tsrc/{old => new}/mod.py\n"
	stats := parseNumstat(out)

	if s := stats["src/app.py"]; s.additions != 10 || s.deletions != 2 {
		t.Errorf("unexpected stats for app.py: %+v", s)
	}
	// Binary files report no line counts.
	if s := stats["assets/logo.png"]; s.additions != 0 || s.deletions != 0 {
		t.Errorf("expected zero counts for binary, got %+v", s)
	}
	// Rename notation collapses to the new path.
	if s, ok := stats["src/new/mod.py"]; !ok || s.additions != 3 {
		t.Errorf("expected normalized rename path, got %v", stats)
	}
}

func TestParseNameStatus(t *testing.T) {
	out := "M\tsrc/app.py\nA\tsrc/fresh.py\nD\tsrc/gone.py\nR087\tsrc/old.py\tsrc/new.py\n"
	statuses := parseNameStatus(out)

	if statuses["src/app.py"] != "M" {
		t.Errorf("expected M, got %s", statuses["src/app.py"])
	}
	if statuses["src/fresh.py"] != "A" {
		t.Errorf("expected A, got %s", statuses["src/fresh.py"])
	}
	if statuses["src/gone.py"] != "D" {
		t.Errorf("expected D, got %s", statuses["src/gone.py"])
	}
	// Rename lines are keyed by the new path with the score stripped.
	if statuses["src/new.py"] != "R" {
		t.Errorf("expected R for renamed file, got %s", statuses["src/new.py"])
	}
	if _, ok := statuses["src/old.py"]; ok {
		t.Error("expected old rename path to be absent")
	}
}

func TestMergeDiffStats(t *testing.T) {
	numstat := map[string]diffStat{
		"src/app.py":    {additions: 5, deletions: 1},
		"src/new.py":    {additions: 2, deletions: 0},
		"src/orphan.py": {additions: 7, deletions: 7},
	}
	nameStatus := map[string]string{
		"src/app.py":  "M",
		"src/new.py":  "R",
		"src/gone.py": "D",
	}

	changes := mergeDiffStats(numstat, nameStatus)
	byPath := make(map[string]string, len(changes))
	adds := make(map[string]int, len(changes))
	for _, c := range changes {
		byPath[c.Path] = c.ChangeType
		adds[c.Path] = c.Additions
	}

	if byPath["src/new.py"] != "R" || adds["src/new.py"] != 2 {
		t.Errorf("expected rename with counts attached, got %s/%d", byPath["src/new.py"], adds["src/new.py"])
	}
	if byPath["src/gone.py"] != "D" {
		t.Errorf("expected delete to survive without numstat, got %s", byPath["src/gone.py"])
	}
	// Status view wins the change type; numstat-only paths default to M.
	if byPath["src/orphan.py"] != "M" {
		t.Errorf("expected numstat-only path to default to M, got %s", byPath["src/orphan.py"])
	}
}

func TestNormalizeRenamePath(t *testing.T) {
	cases := map[string]string{
		"plain.py":                "plain.py",
		"old.py => new.py":        "new.py",
		"src/{old => new}/mod.py": "src/new/mod.py",
		"src/{ => pkg}/mod.py":    "src/pkg/mod.py",
		"{old => new}/mod.py":     "new/mod.py",
	}
	for in, want := range cases {
		if got := normalizeRenamePath(in); got != want {
			t.Errorf("normalizeRenamePath(%q) = %q, want %q", in, got, want)
		}
	}
}
