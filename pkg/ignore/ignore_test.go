package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMatchPattern(t *testing.T) {
	m, err := New(t.TempDir(), Rules{Patterns: []string{".git", "generated", "*.log", "docs/**/*.md"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{".git/HEAD", true},
		{".gitignore", true}, // substring of the relative path
		{"src/generated/api.rs", true},
		{"src/my_generated_file.py", true},
		{"app.log", true},
		{"logs/today.log", true},
		{"docs/guide/intro.md", true},
		{"docs/intro.md", true},
		{"src/lib.rs", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := m.Match(tt.rel, false); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestNestedGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.tmp\nbuild/\n")
	writeFile(t, root, "pkg/.gitignore", "!keep.tmp\nlocal.py\n")

	m, err := New(root, Rules{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"a.tmp", false, true},
		{"pkg/a.tmp", false, true},
		{"pkg/keep.tmp", false, false},
		{"keep.tmp", false, true},
		{"build", true, true},
		{"build", false, false},
		{"pkg/local.py", false, true},
		{"local.py", false, false},
		{"pkg/main.py", false, false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.rel, tt.isDir); got != tt.want {
			t.Errorf("Match(%q, dir=%v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
		}
	}
}

func TestSkipGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.py\n")

	m, err := New(root, Rules{SkipGitignore: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Match("main.py", false) {
		t.Error("expected .gitignore to be ignored when SkipGitignore is set")
	}
}

func TestGitInfoExclude(t *testing.T) {
	tests := []struct {
		name  string
		rules Rules
		rel   string
		want  bool
	}{
		{name: "excluded", rel: "scratch.txt", want: true},
		{name: "excluded nested", rel: "src/scratch.txt", want: true},
		{name: "re-included by gitignore", rel: "keep.log", want: false},
		{name: "other log", rel: "debug.log", want: true},
		{name: "unrelated", rel: "src/lib.rs", want: false},
		{name: "disabled", rules: Rules{SkipGitignore: true}, rel: "scratch.txt", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, ".git/info/exclude", "# local\nscratch.txt\n*.log\n")
			writeFile(t, root, ".gitignore", "!keep.log\n")

			m, err := New(root, tt.rules)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := m.Match(tt.rel, false); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestExtraIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".overcodeignore", "fixtures/\n")

	m, err := New(root, Rules{Files: []string{".overcodeignore", "missing-ignore"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !m.Match("fixtures", true) {
		t.Error("expected fixtures/ to be ignored by extra ignore file")
	}
	if !m.Match("src/fixtures", true) {
		t.Error("expected unanchored directory rule to apply at any depth")
	}
	if m.Match("src/lib.rs", false) {
		t.Error("src/lib.rs should not be ignored")
	}
}

func TestIsGlob(t *testing.T) {
	for p, want := range map[string]bool{
		"*.rs":   true,
		"a?b":    true,
		"[ab].c": true,
		".git":   false,
		"target": false,
	} {
		if got := IsGlob(p); got != want {
			t.Errorf("IsGlob(%q) = %v, want %v", p, got, want)
		}
	}
}
