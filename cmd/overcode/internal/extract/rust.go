package extract

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/treesitter"
)

var (
	rustUseStart  = regexp.MustCompile(`^(?:pub(?:\s*\([^)]*\))?\s+)?use\s+`)
	rustModDecl   = regexp.MustCompile(`^(?:pub(?:\s*\([^)]*\))?\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)\s*;`)
	rustIdentRule = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// rustRefs holds the module references found in one Rust file.
type rustRefs struct {
	uses []string // expanded paths such as "crate::a::b"
	mods []string // names from `mod x;`
}

func (r *rustRefs) addUse(tree string) {
	if i := strings.Index(tree, ";"); i >= 0 {
		tree = tree[:i]
	}
	for _, use := range expandUseTree(tree) {
		if !rustSysrootUse(use) {
			r.uses = append(r.uses, use)
		}
	}
}

// rustSysrootUse reports whether use names a path in std, core or alloc.
func rustSysrootUse(use string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(use, "::"), "::")
	switch strings.TrimSpace(first) {
	case "std", "core", "alloc":
		return true
	}
	return false
}

// RustExtractor resolves `use crate::`, `use super::`, `use self::` and
// `mod x;` declarations to files.
type RustExtractor struct {
	ts treesitter.Backend // nil selects the heuristic collector
}

// NewRustExtractor returns a Rust extractor. A nil backend uses regular
// expressions.
func NewRustExtractor(ts treesitter.Backend) *RustExtractor {
	return &RustExtractor{ts: ts}
}

// Extract implements Extractor.
func (e *RustExtractor) Extract(filePath string, content []byte, root string) []string {
	root = absPath(root)
	filePath = absPath(filePath)
	fileDir := filepath.Dir(filePath)

	refs := e.collect(filePath, content)
	var deps []string
	for _, use := range refs.uses {
		if dep, ok := resolveRustUse(use, fileDir, root); ok {
			deps = append(deps, dep)
		}
	}
	for _, name := range refs.mods {
		if dep, ok := resolveRustMod(name, filePath, root); ok {
			deps = append(deps, dep)
		}
	}
	return finish(deps)
}

func (e *RustExtractor) collect(filePath string, content []byte) rustRefs {
	if e.ts != nil {
		refs, err := collectRustTree(e.ts, content)
		if err == nil {
			return refs
		}
		log.Debug("tree-sitter parse failed, using heuristic parser", "path", filePath, "error", err)
	}
	return collectRustHeuristic(content)
}

// collectRustHeuristic scans line by line. Comment lines are skipped and a
// use declaration may span several lines until its semicolon.
func collectRustHeuristic(content []byte) rustRefs {
	var refs rustRefs
	var pending strings.Builder
	inUse := false

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "//") || strings.HasPrefix(line, "/*") {
			continue
		}

		if inUse {
			pending.WriteByte(' ')
			pending.WriteString(line)
			if strings.Contains(line, ";") {
				refs.addUse(pending.String())
				pending.Reset()
				inUse = false
			}
			continue
		}

		if loc := rustUseStart.FindStringIndex(line); loc != nil {
			rest := line[loc[1]:]
			if strings.Contains(rest, ";") {
				refs.addUse(rest)
			} else {
				pending.WriteString(rest)
				inUse = true
			}
			continue
		}

		if m := rustModDecl.FindStringSubmatch(line); m != nil {
			refs.mods = append(refs.mods, m[1])
		}
	}
	return refs
}

func collectRustTree(backend treesitter.Backend, content []byte) (rustRefs, error) {
	parser, err := backend.NewParser(treesitter.Rust)
	if err != nil {
		return rustRefs{}, err
	}
	defer func() { _ = parser.Close() }()

	tree, err := parser.Parse(context.Background(), content)
	if err != nil {
		return rustRefs{}, err
	}
	defer func() { _ = tree.Close() }()

	var refs rustRefs
	treesitter.Walk(tree.RootNode(), func(n treesitter.Node) bool {
		switch n.Type() {
		case "use_declaration":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				refs.addUse(arg.Content(content))
			}
			return false
		case "mod_item":
			// Inline modules have a body; only `mod x;` names a file.
			if n.ChildByFieldName("body") == nil {
				if name := n.ChildByFieldName("name"); name != nil {
					refs.mods = append(refs.mods, name.Content(content))
				}
			}
		case "line_comment", "block_comment", "string_literal", "raw_string_literal":
			return false
		}
		return true
	})
	return refs, nil
}

// expandUseTree flattens a use tree into "::"-joined paths:
//
//	crate::a::{b, c::{d as e, self}, f::*}
//
// yields crate::a::b, crate::a::c::d, crate::a::c and crate::a::f. Aliases
// are dropped and a glob stands for the module it is applied to.
func expandUseTree(tree string) []string {
	tree = strings.TrimPrefix(strings.TrimSpace(tree), "::")

	open := strings.Index(tree, "{")
	if open < 0 {
		if i := strings.Index(tree, " as "); i >= 0 {
			tree = tree[:i]
		}
		tree = strings.Join(strings.Fields(tree), "")
		if tree == "*" {
			return []string{"self"}
		}
		tree = strings.TrimSuffix(tree, "::*")
		if tree == "" {
			return nil
		}
		return []string{tree}
	}

	end := matchingBrace(tree, open)
	if end < 0 {
		return nil
	}
	prefix := strings.TrimSuffix(strings.Join(strings.Fields(tree[:open]), ""), "::")

	var out []string
	for _, item := range splitTopLevel(tree[open+1 : end]) {
		for _, sub := range expandUseTree(item) {
			switch {
			case sub == "self":
				if prefix != "" {
					out = append(out, prefix)
				}
			case prefix == "":
				out = append(out, sub)
			default:
				out = append(out, prefix+"::"+sub)
			}
		}
	}
	return out
}

func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on commas outside braces.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// resolveRustUse maps a path like crate::a::b::Item to a file. The longest
// prefix of the path that names a module file wins, so items inside a module
// resolve to the module itself.
func resolveRustUse(use, fileDir, root string) (string, bool) {
	segs := strings.Split(use, "::")

	var bases []string
	switch segs[0] {
	case "crate":
		bases = crateRoots(fileDir, root)
		segs = segs[1:]
	case "super":
		base := filepath.Dir(fileDir)
		segs = segs[1:]
		for len(segs) > 0 && segs[0] == "super" {
			base = filepath.Dir(base)
			segs = segs[1:]
		}
		bases = []string{base}
	case "self":
		bases = []string{fileDir}
		segs = segs[1:]
	default:
		return "", false
	}
	if len(segs) == 0 {
		return "", false
	}
	for _, s := range segs {
		if !rustIdentRule.MatchString(s) {
			return "", false
		}
	}

	for _, base := range bases {
		for n := len(segs); n > 0; n-- {
			modPath := filepath.Join(segs[:n]...)
			if dep, ok := existingFile(root, filepath.Join(base, modPath+".rs")); ok {
				return dep, true
			}
			if dep, ok := existingFile(root, filepath.Join(base, modPath, "mod.rs")); ok {
				return dep, true
			}
		}
	}
	return "", false
}

// crateRoots returns the directories `crate::` may refer to: the nearest
// ancestor of fileDir (up to root) holding lib.rs or main.rs, then root.
func crateRoots(fileDir, root string) []string {
	var bases []string
	dir := fileDir
	for {
		if isRegular(filepath.Join(dir, "lib.rs")) || isRegular(filepath.Join(dir, "main.rs")) {
			bases = append(bases, dir)
			break
		}
		if dir == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if _, ok := underRoot(root, parent); !ok && parent != root {
			break
		}
		dir = parent
	}
	if len(bases) == 0 || bases[0] != root {
		bases = append(bases, root)
	}
	return bases
}

// resolveRustMod maps `mod name;` in filePath to name.rs or name/mod.rs
// beside the file, or inside the directory named after a non-root module
// file (src/a.rs declaring `mod b;` lives at src/a/b.rs).
func resolveRustMod(name, filePath, root string) (string, bool) {
	dir := filepath.Dir(filePath)
	candidates := []string{
		filepath.Join(dir, name+".rs"),
		filepath.Join(dir, name, "mod.rs"),
	}
	switch stem := strings.TrimSuffix(filepath.Base(filePath), ".rs"); stem {
	case "mod", "lib", "main":
	default:
		candidates = append(candidates,
			filepath.Join(dir, stem, name+".rs"),
			filepath.Join(dir, stem, name, "mod.rs"))
	}
	for _, c := range candidates {
		if dep, ok := existingFile(root, c); ok {
			return dep, true
		}
	}
	return "", false
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
