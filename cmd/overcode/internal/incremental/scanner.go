package incremental

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/ignore"
)

// ScanConfig configures the scanner.
type ScanConfig struct {
	Root  string
	Rules ignore.Rules
}

// Scanner lists the regular files of a tree that survive the ignore rules.
type Scanner struct {
	root    string
	matcher *ignore.Matcher
}

// NewScanner creates a scanner with the given config. Extra ignore files
// are read here.
func NewScanner(cfg ScanConfig) (*Scanner, error) {
	m, err := ignore.New(cfg.Root, cfg.Rules)
	if err != nil {
		return nil, ioErr("load ignore rules", cfg.Root, err)
	}
	return &Scanner{root: cfg.Root, matcher: m}, nil
}

// Scan is a convenience wrapper around NewScanner and Scanner.Scan.
func Scan(ctx context.Context, root string, rules ignore.Rules) ([]FileEntry, error) {
	s, err := NewScanner(ScanConfig{Root: root, Rules: rules})
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx)
}

// Matcher returns the ignore matcher used by the scanner.
func (s *Scanner) Matcher() *ignore.Matcher {
	return s.matcher
}

// Scan walks the tree and returns its files sorted by relative path.
// An unreadable root is an error; unreadable entries below it are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]FileEntry, error) {
	logger := log.Component("scanner")
	var entries []FileEntry

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == s.root {
				return ioErr("scan", path, err)
			}
			logger.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == s.root {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		// Snapshot keys must be valid UTF-8 to round-trip through TOML.
		if !utf8.ValidString(relPath) {
			logger.Warn("skipping path that is not valid UTF-8", "path", relPath)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if d.Name() == MetaDirName || s.matcher.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if s.matcher.Match(relPath, false) {
			return nil
		}

		entries = append(entries, FileEntry{AbsPath: path, RelPath: relPath})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b FileEntry) int {
		return strings.Compare(a.RelPath, b.RelPath)
	})
	logger.Debug("scan complete", "root", s.root, "files", len(entries))
	return entries, nil
}
