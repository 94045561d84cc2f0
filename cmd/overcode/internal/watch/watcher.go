package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/overcode/cmd/overcode/internal/incremental"
	"github.com/albertocavalcante/overcode/internal/log"
	"github.com/albertocavalcante/overcode/pkg/ignore"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Indexer performs one indexing pass. *incremental.Manager implements it.
type Indexer interface {
	Run(ctx context.Context) (*incremental.RunResult, error)
	TrackedFileCount() int
}

// Config configures the watcher.
type Config struct {
	Root       string
	Indexer    Indexer
	Rules      ignore.Rules  // paths the indexer skips are not watched
	Debounce   time.Duration // quiet period before a run
	MaxPending int           // pending paths that force a run (0 = DefaultMaxPending)

	Output  io.Writer // event output, defaults to stdout
	Verbose bool
	NoColor bool
	JSON    bool
}

// Watcher re-runs the indexer when files under the root change.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	matcher   *ignore.Matcher
	debouncer *Debouncer
	logger    *Logger

	runCtx context.Context
	// runMu serializes indexing runs; debounced flushes arrive on timer
	// goroutines.
	runMu sync.Mutex
}

// New creates a new watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Indexer == nil {
		return nil, errors.New("watch: no indexer configured")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	matcher, err := ignore.New(cfg.Root, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := NewLogger(LoggerConfig{
		Writer:  cfg.Output,
		Verbose: cfg.Verbose,
		NoColor: cfg.NoColor,
		JSON:    cfg.JSON,
	})

	return &Watcher{
		config:    cfg,
		fsWatcher: fsWatcher,
		matcher:   matcher,
		logger:    logger,
	}, nil
}

// Logger returns the event logger.
func (w *Watcher) Logger() *Logger { return w.logger }

// Run indexes once, then watches until ctx is cancelled. Failed runs are
// reported and watching continues; only setup errors are returned.
func (w *Watcher) Run(ctx context.Context) error {
	w.runCtx = ctx
	w.debouncer = NewDebouncer(w.config.Debounce, w.config.MaxPending, w.handleBatch)
	defer w.debouncer.Stop()

	if err := w.addRecursive(w.config.Root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Root, err)
	}

	// Bring the index up to date before reporting ready.
	w.index(nil)
	if ctx.Err() != nil {
		w.logger.Shutdown()
		return nil
	}
	w.logger.Ready(w.config.Indexer.TrackedFileCount(), w.config.Root)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive adds a directory and all non-ignored subdirectories to the
// watcher.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Debug("skipping unreadable directory", "path", path, "error", err)
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if rel, ok := w.rel(path); ok && rel != "." && w.ignored(rel, true) {
			return filepath.SkipDir
		}

		if err := w.fsWatcher.Add(path); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s: %v\n"+
					"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", ErrWatchLimitReached, path, err)
			}
			log.Debug("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// rel returns path relative to the root with forward slashes.
func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored reports whether rel is outside the indexed set: the metadata
// directory or anything the ignore rules exclude.
func (w *Watcher) ignored(rel string, isDir bool) bool {
	if rel == incremental.MetaDirName || strings.HasPrefix(rel, incremental.MetaDirName+"/") {
		return true
	}
	return w.matcher.Match(rel, isDir)
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, ok := w.rel(event.Name)
	if !ok || rel == "." {
		return
	}

	var change ChangeType
	switch {
	case event.Has(fsnotify.Create):
		change = ChangeAdded
	case event.Has(fsnotify.Write):
		change = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		change = ChangeDeleted
	default:
		return // chmod
	}

	isDir := false
	if change == ChangeAdded {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignored(rel, isDir) {
		return
	}

	// Rule changes take effect for later events; the indexer reads them
	// afresh on every run.
	if filepath.Base(rel) == ignore.GitignoreName {
		w.reloadRules()
	}

	if isDir {
		// Files created before the watch was in place are picked up by
		// the run this event schedules.
		if err := w.addRecursive(event.Name); err != nil {
			w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", rel, err))
		}
	} else {
		w.logger.FileChanged(rel, change)
	}

	w.debouncer.Add(rel)
}

func (w *Watcher) reloadRules() {
	matcher, err := ignore.New(w.config.Root, w.config.Rules)
	if err != nil {
		w.logger.Error(fmt.Errorf("reloading ignore rules: %w", err))
		return
	}
	w.matcher = matcher
}

// handleBatch is called when the debouncer flushes.
func (w *Watcher) handleBatch(paths []string) {
	if w.runCtx == nil || w.runCtx.Err() != nil {
		return
	}
	w.index(paths)
}

// index runs the indexer once, logging the outcome.
func (w *Watcher) index(paths []string) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if len(paths) > 0 {
		w.logger.Indexing(paths)
	}
	res, err := w.config.Indexer.Run(w.runCtx)
	if err != nil {
		if w.runCtx.Err() != nil {
			return
		}
		w.logger.Error(fmt.Errorf("indexing failed: %w", err))
		return
	}
	w.logger.Indexed(res)
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")
