package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	logger    atomic.Pointer[slog.Logger]
	level     = new(slog.LevelVar)
	verbosity atomic.Int32
)

// quiet is handed out by V when the requested verbosity is not enabled.
var quiet = slog.New(slog.DiscardHandler)

func init() {
	// Library use (tests, embedding) gets warnings on stderr.
	level.Set(slog.LevelWarn)
	verbosity.Store(VerbosityWarn)
	logger.Store(slog.New(NewHandler(HandlerOptions{Level: level, Format: FormatText})))
}

// Init points the global logger at stderr with the given -v level and
// --log-format. The CLI calls it once flags are parsed.
func Init(v int, format string) {
	InitWithOutput(v, format, os.Stderr)
}

// InitWithOutput is Init with an explicit destination.
func InitWithOutput(v int, format string, out io.Writer) {
	SetVerbosity(v)
	f, err := ParseFormat(format)
	if err != nil {
		f = FormatText
	}
	l := slog.New(NewHandler(HandlerOptions{Level: level, Format: f, Output: out}))
	logger.Store(l)
	slog.SetDefault(l)
}

// SetVerbosity changes the level without rebuilding the handler.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
}

// Verbosity returns the current -v level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Load()
}

func Error(msg string, args ...any) { logger.Load().Error(msg, args...) }
func Warn(msg string, args ...any)  { logger.Load().Warn(msg, args...) }
func Info(msg string, args ...any)  { logger.Load().Info(msg, args...) }
func Debug(msg string, args ...any) { logger.Load().Debug(msg, args...) }

// Trace logs below debug, for per-file stat and hash decisions.
func Trace(msg string, args ...any) {
	logger.Load().Log(context.Background(), LevelTrace, msg, args...)
}

// V returns the logger if verbosity is at least v and a discarding logger
// otherwise:
//
//	log.V(3).Info("group processed", "hash", h)
func V(v int) *slog.Logger {
	if Verbosity() >= v {
		return logger.Load()
	}
	return quiet
}

// With returns the current logger with args attached.
func With(args ...any) *slog.Logger {
	return logger.Load().With(args...)
}

// Component returns the current logger tagged component=name. Callers
// should resolve it per operation since Init replaces the logger.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}
