//go:build windows

package incremental

import "os"

// processRunning relies on FindProcess opening a handle, which fails for
// processes that no longer exist on Windows.
func processRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = process.Release()
	return true
}
