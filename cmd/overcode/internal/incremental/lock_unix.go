//go:build !windows

package incremental

import (
	"errors"
	"os"
	"syscall"
)

// processRunning sends signal 0 to probe for the process. EPERM means the
// process exists but belongs to someone else.
func processRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
