// Package extract finds intra-project dependency edges in source files.
//
// Each language has two parts: a collector that pulls import-style
// references out of the file, and a resolver that maps those references to
// files under the project root. Collectors come in two flavours selected by
// Backend: line-oriented regular expressions (always available) and
// tree-sitter syntax trees (cgo builds only). Resolution is shared by both.
//
// Extraction never fails: references that are external, standard library or
// simply missing on disk are dropped.
package extract

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/overcode/cmd/overcode/internal/langs"
	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/treesitter"
	"github.com/albertocavalcante/overcode/pkg/util"
)

// Backend selects how references are collected.
type Backend string

const (
	// BackendHeuristic uses line-based regular expressions.
	BackendHeuristic Backend = "heuristic"

	// BackendTreeSitter parses files with tree-sitter.
	BackendTreeSitter Backend = "treesitter"
)

// ParseBackend validates a backend name. Empty selects BackendHeuristic.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendHeuristic, nil
	case BackendHeuristic, BackendTreeSitter:
		return b, nil
	default:
		return "", fmt.Errorf("unknown parser backend %q: must be %s or %s", s, BackendHeuristic, BackendTreeSitter)
	}
}

// Extractor returns the project-local files a source file depends on.
// filePath is absolute; results are slash-separated paths relative to root,
// sorted and unique.
type Extractor interface {
	Extract(filePath string, content []byte, root string) []string
}

// Options configures New.
type Options struct {
	Backend   Backend
	Languages []string // nil enables every known language
}

// Registry dispatches to an Extractor by file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// New builds a registry with the built-in extractors for opts.Languages.
// When the tree-sitter backend is requested but unavailable, a warning is
// logged and the heuristic collectors are used instead.
func New(opts Options) (*Registry, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendHeuristic
	}

	var ts treesitter.Backend
	if backend == BackendTreeSitter {
		b, err := treesitter.NewBackend()
		if err != nil {
			log.Warn("tree-sitter unavailable, falling back to heuristic parser", "error", err)
		} else {
			ts = b
		}
	}

	languages := opts.Languages
	if len(languages) == 0 {
		languages = langs.Names()
	}

	r := NewRegistry()
	for _, lang := range languages {
		var e Extractor
		switch lang {
		case langs.Rust:
			e = NewRustExtractor(ts)
		case langs.Python:
			e = NewPythonExtractor(ts)
		default:
			return nil, fmt.Errorf("no dependency extractor for language %q (known: %s)",
				lang, strings.Join(langs.Names(), ", "))
		}
		for _, ext := range langs.Extensions[lang] {
			r.Register(ext, e)
		}
	}
	return r, nil
}

// Register associates ext (including the leading dot) with e.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[ext] = e
}

// For returns the extractor registered for path's extension.
func (r *Registry) For(path string) (Extractor, bool) {
	e, ok := r.byExt[filepath.Ext(path)]
	return e, ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	return util.SortedKeys(r.byExt)
}

// Extract runs the extractor for filePath, if any.
func (r *Registry) Extract(filePath string, content []byte, root string) []string {
	e, ok := r.For(filePath)
	if !ok {
		return nil
	}
	return e.Extract(filePath, content, root)
}

// finish sorts and dedupes a result set.
func finish(deps []string) []string {
	slices.Sort(deps)
	return slices.Compact(deps)
}
