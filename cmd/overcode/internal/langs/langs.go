// Package langs maps language names to the file extensions overcode
// extracts dependencies from.
//
// The mapping is deterministic: given a language name, you always get the
// same set of extensions. Components that dispatch on file type (the
// extractor registry, configuration validation) use this package rather than
// keeping their own tables.
package langs

import (
	"path/filepath"
	"slices"

	"github.com/albertocavalcante/overcode/pkg/util"
)

// Language names.
const (
	Rust   = "rust"
	Python = "python"
)

// Extensions maps language names to their file extensions.
var Extensions = map[string][]string{
	Rust:   {".rs"},
	Python: {".py"},
}

// Names returns all known language names, sorted.
func Names() []string {
	return util.SortedKeys(Extensions)
}

// Known reports whether lang is a known language name.
func Known(lang string) bool {
	_, ok := Extensions[lang]
	return ok
}

// ExtensionSet returns a set of all extensions for the given languages.
// If languages is nil or empty, returns all known extensions.
func ExtensionSet(languages []string) map[string]bool {
	extensions := make(map[string]bool)
	if len(languages) == 0 {
		languages = Names()
	}
	for _, lang := range languages {
		for _, ext := range Extensions[lang] {
			extensions[ext] = true
		}
	}
	return extensions
}

// ForPath returns the language of path by extension, or "" if none.
func ForPath(path string) string {
	ext := filepath.Ext(path)
	for _, lang := range Names() {
		if slices.Contains(Extensions[lang], ext) {
			return lang
		}
	}
	return ""
}
