package incremental

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Lock is an advisory single-writer lock backed by a PID file. It only
// guards against other overcode processes that honor the same file.
type Lock struct {
	path string
}

// AcquireLock creates the lock file at path. If the file exists and names a
// live process, it returns an error wrapping ErrLocked. A lock left behind by
// a dead process is removed and taken over.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; attempt < 3; attempt++ {
		err := publishLock(path)
		if err == nil {
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, ioErr("create lock", path, err)
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, ioErr("read lock", path, err)
		}
		pid, ok := parseLockPID(data)
		if ok && processRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d, lock file %s)", ErrLocked, pid, path)
		}
		// Stale: the holder is gone or the file is garbage.
		if err := removeStaleLock(path, data); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w (lock file %s keeps reappearing)", ErrLocked, path)
}

// publishLock writes our PID to a private file and hard-links it to path,
// so the lock never exists without its contents. It fails with fs.ErrExist
// when path is already taken.
func publishLock(path string) error {
	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()
	return os.Link(tmp, path)
}

// removeStaleLock moves the lock at path aside and deletes it, provided it
// still holds stale. Renaming is atomic, so of several processes taking over
// the same stale lock only one moves it. If the moved file turns out to be a
// lock another process has just created, it is put back.
func removeStaleLock(path string, stale []byte) error {
	aside := fmt.Sprintf("%s.stale-%d", path, os.Getpid())
	if err := os.Rename(path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ioErr("move stale lock", path, err)
	}

	moved, err := os.ReadFile(aside)
	if err == nil && !bytes.Equal(moved, stale) {
		// Link fails if yet another lock appeared meanwhile; that one wins.
		if lerr := os.Link(aside, path); lerr != nil && !errors.Is(lerr, fs.ErrExist) {
			_ = os.Remove(aside)
			return ioErr("restore lock", path, lerr)
		}
	}
	if err := os.Remove(aside); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("remove stale lock", aside, err)
	}
	return nil
}

// Release removes the lock file. Releasing a nil lock is a no-op.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("release lock", l.path, err)
	}
	return nil
}

func parseLockPID(data []byte) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
