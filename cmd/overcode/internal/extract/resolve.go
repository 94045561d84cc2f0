package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// underRoot returns abs relative to root with forward slashes, if abs lies
// inside root.
func underRoot(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// existingFile returns the relative path of candidate if it is a regular
// file under root.
func existingFile(root, candidate string) (string, bool) {
	rel, ok := underRoot(root, candidate)
	if !ok {
		return "", false
	}
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return rel, true
}

// absPath cleans p and makes it absolute against the working directory.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
