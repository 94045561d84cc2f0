package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/albertocavalcante/overcode/cmd/overcode/internal/incremental"
	"golang.org/x/term"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger handles watch mode output: human-readable lines, colored on a
// terminal, or one JSON object per event.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	mu    sync.Mutex // serializes writes and guards stats
	stats WatchStats
}

// WatchStats tracks statistics for the watch session.
type WatchStats struct {
	RunCount   int
	ErrorCount int
	StartTime  time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer // defaults to os.Stdout
	Verbose bool      // print individual file events
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: WatchStats{
			StartTime: time.Now(),
		},
	}
}

// Ready logs that the initial index is in place and watching has begun.
func (l *Logger) Ready(fileCount int, path string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "ready",
			"files": fileCount,
			"path":  path,
		})
		return
	}

	l.printf("overcode: watching %d files in %s\n", fileCount, path)
	l.printf("overcode: ready\n\n")
}

// FileChanged logs a file change event. Text output shows it only when
// verbose.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":  "file_changed",
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Indexing logs that a run is starting for a batch of changed paths.
func (l *Logger) Indexing(paths []string) {
	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "indexing",
			"paths": paths,
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	if len(paths) == 1 {
		l.printf("[%s] indexing after change to %s...\n", l.timestamp(), paths[0])
	} else {
		l.printf("[%s] indexing after %d changes...\n", l.timestamp(), len(paths))
	}
}

// Indexed logs a completed run.
func (l *Logger) Indexed(res *incremental.RunResult) {
	l.mu.Lock()
	l.stats.RunCount++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "indexed",
			"snapshot": res.Timestamp,
			"files":    res.Scanned,
			"hashed":   res.Hashed,
			"blobs":    res.BlobsWritten,
			"pruned":   res.Pruned,
			"changed":  res.Changed,
			"time":     time.Now().Format(time.RFC3339),
		})
		return
	}

	checkmark := l.colorize("✓", ChangeAdded)
	detail := "no content changes"
	if res.Changed {
		detail = fmt.Sprintf("%d hashed, %d new blobs, %d pruned", res.Hashed, res.BlobsWritten, res.Pruned)
	}
	l.printf("[%s] %s snapshot %d (%d files, %s)\n", l.timestamp(), checkmark, res.Timestamp, res.Scanned, detail)
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.mu.Lock()
	l.stats.ErrorCount++
	l.mu.Unlock()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.writeJSON(map[string]any{
			"event":    "shutdown",
			"runs":     stats.RunCount,
			"errors":   stats.ErrorCount,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}

	l.printf("\novercode: shutting down (%d runs, %d errors)\n", stats.RunCount, stats.ErrorCount)
}

// Stats returns the current watch statistics.
func (l *Logger) Stats() WatchStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// timestamp returns the current time formatted as HH:MM:SS.
func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m" // green
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

// writeJSON writes a JSON object to the output.
func (l *Logger) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Write a minimal error event so tooling knows something went wrong
		l.printf("%s\n", `{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.printf("%s\n", data)
}

// printf writes to the output, ignoring errors. Debounced runs and the
// event loop log from different goroutines.
func (l *Logger) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.writer, format, args...)
}
