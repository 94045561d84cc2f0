package extract

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/treesitter"
)

var (
	pyImportLine = regexp.MustCompile(`^import\s+(.+)$`)
	pyFromLine   = regexp.MustCompile(`^from\s+(\.*[A-Za-z_][A-Za-z0-9_.]*|\.+)\s+import\s+(.+)$`)
	pyDottedName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// pyImport is one imported module. For `from m import a, b` the names are
// kept so that submodules (m/a.py) can be resolved as well.
type pyImport struct {
	module string // may carry leading dots
	names  []string
}

// PythonExtractor resolves `import x` and `from x import y` statements to
// files, skipping the standard library.
type PythonExtractor struct {
	ts treesitter.Backend // nil selects the heuristic collector
}

// NewPythonExtractor returns a Python extractor. A nil backend uses regular
// expressions.
func NewPythonExtractor(ts treesitter.Backend) *PythonExtractor {
	return &PythonExtractor{ts: ts}
}

// Extract implements Extractor.
func (e *PythonExtractor) Extract(filePath string, content []byte, root string) []string {
	root = absPath(root)
	fileDir := filepath.Dir(absPath(filePath))

	var deps []string
	for _, imp := range e.collect(filePath, content) {
		deps = append(deps, resolvePyImport(imp, fileDir, root)...)
	}
	return finish(deps)
}

func (e *PythonExtractor) collect(filePath string, content []byte) []pyImport {
	if e.ts != nil {
		imports, err := collectPythonTree(e.ts, content)
		if err == nil {
			return imports
		}
		log.Debug("tree-sitter parse failed, using heuristic parser", "path", filePath, "error", err)
	}
	return collectPythonHeuristic(content)
}

// collectPythonHeuristic scans line by line, skipping comments and the
// bodies of triple-quoted strings (rough heuristic).
func collectPythonHeuristic(content []byte) []pyImport {
	var imports []pyImport
	inMultilineString := false
	multilineDelim := ""
	var pending string // from-import with an open parenthesis

	for _, line := range strings.Split(string(content), "\n") {
		// Track multiline strings
		if !inMultilineString {
			if strings.Contains(line, `"""`) || strings.Contains(line, `'''`) {
				if strings.Contains(line, `"""`) {
					multilineDelim = `"""`
				} else {
					multilineDelim = `'''`
				}
				if strings.Count(line, multilineDelim) == 1 {
					inMultilineString = true
					continue
				}
			}
		} else {
			if strings.Contains(line, multilineDelim) {
				inMultilineString = false
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if i := strings.Index(trimmed, "#"); i >= 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		if trimmed == "" {
			continue
		}

		if pending != "" {
			pending += " " + trimmed
			if !strings.Contains(trimmed, ")") {
				continue
			}
			trimmed, pending = pending, ""
		}

		if m := pyFromLine.FindStringSubmatch(trimmed); m != nil {
			if strings.HasPrefix(m[2], "(") && !strings.Contains(m[2], ")") {
				pending = trimmed
				continue
			}
			imports = append(imports, pyImport{module: m[1], names: parseImportNames(m[2])})
			continue
		}

		if m := pyImportLine.FindStringSubmatch(trimmed); m != nil {
			for _, part := range strings.Split(m[1], ",") {
				part = strings.TrimSpace(part)
				// "import X as Y" - keep X
				if idx := strings.Index(part, " as "); idx > 0 {
					part = strings.TrimSpace(part[:idx])
				}
				if pyDottedName.MatchString(part) {
					imports = append(imports, pyImport{module: part})
				}
			}
		}
	}
	return imports
}

// parseImportNames parses the names from a "from X import a, b, c" statement.
func parseImportNames(names string) []string {
	names = strings.TrimPrefix(strings.TrimSpace(names), "(")
	names = strings.TrimSuffix(names, ")")
	names = strings.ReplaceAll(names, "\\", "")

	var result []string
	for _, part := range strings.Split(names, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, " as "); idx > 0 {
			part = part[:idx]
		}
		part = strings.TrimSpace(part)
		if part != "" && part != "*" && pyDottedName.MatchString(part) {
			result = append(result, part)
		}
	}
	return result
}

func collectPythonTree(backend treesitter.Backend, content []byte) ([]pyImport, error) {
	parser, err := backend.NewParser(treesitter.Python)
	if err != nil {
		return nil, err
	}
	defer func() { _ = parser.Close() }()

	tree, err := parser.Parse(context.Background(), content)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tree.Close() }()

	var imports []pyImport
	treesitter.Walk(tree.RootNode(), func(n treesitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for _, c := range treesitter.NamedChildren(n) {
				if name := importedName(c, content); name != "" {
					imports = append(imports, pyImport{module: name})
				}
			}
			return false
		case "import_from_statement":
			mod := n.ChildByFieldName("module_name")
			if mod == nil {
				return false
			}
			imp := pyImport{module: strings.Join(strings.Fields(mod.Content(content)), "")}
			for _, c := range treesitter.NamedChildren(n) {
				if c.StartPoint() == mod.StartPoint() {
					continue
				}
				if name := importedName(c, content); name != "" {
					imp.names = append(imp.names, name)
				}
			}
			imports = append(imports, imp)
			return false
		case "comment", "string":
			return false
		}
		return true
	})
	return imports, nil
}

// importedName returns the dotted name of a dotted_name or aliased_import
// node, or "" for anything else.
func importedName(n treesitter.Node, content []byte) string {
	switch n.Type() {
	case "dotted_name":
		return n.Content(content)
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(content)
		}
	}
	return ""
}

// resolvePyImport maps one import to files or package directories.
// Relative imports start at the file's directory, climbing one level per
// extra dot. Absolute imports are tried against the file's directory and
// then the root; the first base that yields anything wins.
func resolvePyImport(imp pyImport, fileDir, root string) []string {
	module := imp.module
	dots := len(module) - len(strings.TrimLeft(module, "."))

	if dots > 0 {
		base := fileDir
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		if _, ok := underRoot(root, base); !ok && base != root {
			return nil
		}
		rest := module[dots:]
		if rest == "" {
			var out []string
			for _, name := range imp.names {
				if dep, ok := resolvePyModule(base, name, root); ok {
					out = append(out, dep)
				}
			}
			return out
		}
		return resolvePyIn(base, rest, imp.names, root)
	}

	if IsPythonStdlib(module) {
		return nil
	}
	for _, base := range []string{fileDir, root} {
		if out := resolvePyIn(base, module, imp.names, root); len(out) > 0 {
			return out
		}
	}
	return nil
}

// resolvePyIn resolves module under base, plus module.name for each
// from-imported name that is itself a submodule.
func resolvePyIn(base, module string, names []string, root string) []string {
	var out []string
	if dep, ok := resolvePyModule(base, module, root); ok {
		out = append(out, dep)
	}
	for _, name := range names {
		if dep, ok := resolvePyModule(base, module+"."+name, root); ok {
			out = append(out, dep)
		}
	}
	return out
}

// resolvePyModule returns X.py, or the directory X when it holds an
// __init__.py.
func resolvePyModule(base, dotted, root string) (string, bool) {
	modPath := filepath.Join(base, filepath.Join(strings.Split(dotted, ".")...))
	if dep, ok := existingFile(root, modPath+".py"); ok {
		return dep, true
	}
	if _, ok := existingFile(root, filepath.Join(modPath, "__init__.py")); ok {
		return underRoot(root, modPath)
	}
	return "", false
}
