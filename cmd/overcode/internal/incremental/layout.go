package incremental

import (
	"os"
	"path/filepath"
)

const (
	// MetaDirName is the per-tree metadata directory. Scans always skip it.
	MetaDirName = ".overcode"

	historyDirName = "history"
	blobsDirName   = "blobs"
	lockFileName   = "index.lock"
)

// Layout names the on-disk locations used for one source tree.
type Layout struct {
	Root    string // source tree root
	Dir     string // <root>/.overcode
	History string // snapshot files
	Blobs   string // content-addressed blobs
	Lock    string // advisory run lock
}

// NewLayout computes the layout for root. It does not touch the filesystem.
func NewLayout(root string) Layout {
	dir := filepath.Join(root, MetaDirName)
	return Layout{
		Root:    root,
		Dir:     dir,
		History: filepath.Join(dir, historyDirName),
		Blobs:   filepath.Join(dir, blobsDirName),
		Lock:    filepath.Join(dir, lockFileName),
	}
}

// EnsureLayout creates the metadata, history and blob directories.
func (l Layout) EnsureLayout() error {
	for _, dir := range []string{l.Dir, l.History, l.Blobs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ioErr("mkdir", dir, err)
		}
	}
	return nil
}

// Exists reports whether the metadata directory is present.
func (l Layout) Exists() bool {
	info, err := os.Stat(l.Dir)
	return err == nil && info.IsDir()
}
