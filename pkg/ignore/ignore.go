// Package ignore decides which paths under a source root are excluded from
// indexing. It combines four sources of rules:
//
//   - literal and glob entries from configuration
//   - the repository's .git/info/exclude, anchored at the root
//   - extra ignore files in .gitignore syntax, anchored at the root
//   - .gitignore files found in the tree, applied to their own subtree
//
// Within and across .gitignore files the last matching rule wins, so a
// negated pattern in a nested file re-includes a path its parent excluded.
package ignore

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

const (
	// GitignoreName is the per-directory ignore file honored in the tree.
	GitignoreName = ".gitignore"

	// GitExcludePath is the repository-local exclude file, relative to the
	// root. It is honored together with .gitignore files.
	GitExcludePath = ".git/info/exclude"
)

// Rules is the caller-supplied ignore configuration.
type Rules struct {
	// Patterns are literal or glob entries. A literal matches a path
	// component exactly or any substring of the relative path. An entry
	// containing *, ? or [ is a doublestar glob matched against each
	// component and against the whole relative path.
	Patterns []string

	// Files are extra ignore files in .gitignore syntax. Relative names
	// are resolved against the root; all are anchored at the root.
	Files []string

	// SkipGitignore disables .gitignore files found in the tree and
	// .git/info/exclude.
	SkipGitignore bool
}

// Matcher evaluates Rules for one root. It is safe for concurrent use.
type Matcher struct {
	root      string
	literals  []string
	globs     []string
	gitignore bool

	mu     sync.Mutex
	frames map[string][]layer // dir rel path -> layers in effect for its entries
}

// layer is one ignore file anchored at base (a relative dir, "" for root).
type layer struct {
	base string
	ign  *gitignore.GitIgnore
	// reinclude holds the file's negated patterns without the "!", so a
	// negation can override a match from an outer file.
	reinclude *gitignore.GitIgnore
}

// New builds a Matcher. Extra ignore files that do not exist are skipped;
// any other read failure is returned.
func New(root string, rules Rules) (*Matcher, error) {
	m := &Matcher{
		root:      root,
		gitignore: !rules.SkipGitignore,
		frames:    make(map[string][]layer),
	}
	for _, p := range rules.Patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if IsGlob(p) {
			m.globs = append(m.globs, p)
		} else {
			m.literals = append(m.literals, strings.Trim(filepath.ToSlash(p), "/"))
		}
	}

	var rootLayers []layer
	if m.gitignore {
		l, ok, err := loadLayer(filepath.Join(root, filepath.FromSlash(GitExcludePath)), "")
		if err != nil {
			return nil, err
		}
		if ok {
			rootLayers = append(rootLayers, l)
		}
	}
	for _, f := range rules.Files {
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		l, ok, err := loadLayer(f, "")
		if err != nil {
			return nil, err
		}
		if ok {
			rootLayers = append(rootLayers, l)
		}
	}
	if m.gitignore {
		l, ok, err := loadLayer(filepath.Join(root, GitignoreName), "")
		if err != nil {
			return nil, err
		}
		if ok {
			rootLayers = append(rootLayers, l)
		}
	}
	m.frames[""] = rootLayers
	return m, nil
}

// IsGlob reports whether p contains glob metacharacters.
func IsGlob(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// Match reports whether rel (slash-separated, relative to the root) is
// ignored. isDir selects directory-only gitignore rules.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	if m.MatchPattern(rel) {
		return true
	}
	return m.matchLayers(rel, isDir)
}

// MatchPattern applies only the configured literal and glob entries.
func (m *Matcher) MatchPattern(rel string) bool {
	components := strings.Split(rel, "/")
	for _, lit := range m.literals {
		if strings.Contains(rel, lit) {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		for _, c := range components {
			if ok, _ := doublestar.Match(g, c); ok {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) matchLayers(rel string, isDir bool) bool {
	ignored := false
	for _, l := range m.layersFor(path.Dir(rel)) {
		sub := rel
		if l.base != "" {
			var ok bool
			sub, ok = strings.CutPrefix(rel, l.base+"/")
			if !ok {
				continue
			}
		}
		if isDir {
			sub += "/"
		}
		if l.ign.MatchesPath(sub) {
			ignored = true
		} else if ignored && l.reinclude != nil && l.reinclude.MatchesPath(sub) {
			ignored = false
		}
	}
	return ignored
}

// layersFor returns the layers in effect for entries of dir, loading
// .gitignore files along the way on first use.
func (m *Matcher) layersFor(dir string) []layer {
	if dir == "." {
		dir = ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layersLocked(dir)
}

func (m *Matcher) layersLocked(dir string) []layer {
	if ls, ok := m.frames[dir]; ok {
		return ls
	}
	parentDir := path.Dir(dir)
	if parentDir == "." {
		parentDir = ""
	}
	layers := m.layersLocked(parentDir)
	if m.gitignore {
		l, ok, _ := loadLayer(filepath.Join(m.root, filepath.FromSlash(dir), GitignoreName), dir)
		if ok {
			layers = append(layers[:len(layers):len(layers)], l)
		}
	}
	m.frames[dir] = layers
	return layers
}

func loadLayer(file, base string) (layer, bool, error) {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return layer{}, false, nil
	}
	if err != nil {
		return layer{}, false, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	l := layer{base: base, ign: gitignore.CompileIgnoreLines(lines...)}

	var negated []string
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "!"); ok && rest != "" {
			negated = append(negated, rest)
		}
	}
	if len(negated) > 0 {
		l.reinclude = gitignore.CompileIgnoreLines(negated...)
	}
	return l, true, nil
}
