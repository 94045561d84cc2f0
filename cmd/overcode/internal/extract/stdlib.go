package extract

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
)

//go:embed stdlib_modules.txt
var stdlibModulesData string

// stdlibModules is the set of Python standard library module names.
// Initialized lazily on first access.
var (
	stdlibModules     map[string]bool
	stdlibModulesOnce sync.Once
)

func initStdlibModules() {
	stdlibModules = make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(stdlibModulesData))
	for scanner.Scan() {
		module := strings.TrimSpace(scanner.Text())
		if module != "" && !strings.HasPrefix(module, "#") {
			stdlibModules[module] = true
		}
	}
}

// IsPythonStdlib checks if a module name is part of the Python standard
// library. Dotted names are checked by their top-level module.
func IsPythonStdlib(module string) bool {
	stdlibModulesOnce.Do(initStdlibModules)

	if idx := strings.Index(module, "."); idx > 0 {
		module = module[:idx]
	}
	return stdlibModules[module]
}
