// nolint: sloglint
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
)

// Levels above slog.LevelError. They render as CRITICAL, PANIC and FATAL.
const (
	LevelCritical = slog.Level(12)
	LevelPanic    = slog.Level(14)
	LevelFatal    = slog.Level(16)
)

// Attribute keys added by the logger itself.
const (
	ErrorKey           = slogx.ErrorKey
	ErrorVerboseKey    = "error_verbose"
	ErrorStackTraceKey = "error_stacktrace"
)

var (
	lvl = new(slog.LevelVar)

	// top-level logger, replaced by Init
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceLevel,
	}))
)

func init() {
	lvl.Set(slog.LevelInfo)
	slog.SetDefault(logger)
}

type Config struct {
	// Output is "text" (default) or "json".
	Output string `mapstructure:"output"`

	// Debug lowers the level to debug, adds the source position and expands errors
	// with their verbose message and stack trace.
	Debug bool `mapstructure:"debug"`
}

// Init replaces the global logger and the slog default logger.
func Init(cfg Config) error {
	logger = newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	options := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			return replaceError(groups, replaceDuration(groups, replaceLevel(groups, attr)))
		},
	}
	lvl.Set(slog.LevelInfo)
	if cfg.Debug {
		lvl.Set(slog.LevelDebug)
		options.AddSource = true
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Output, "json") {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	if cfg.Debug {
		handler = &errorDetailHandler{Handler: handler}
	}
	return slog.New(handler)
}

// SetLevel returns the previous level.
func SetLevel(level slog.Level) (old slog.Level) {
	old = lvl.Level()
	lvl.Set(level)
	return old
}

func With(args ...any) *slog.Logger {
	return logger.With(args...)
}

func Debug(msg string, args ...any) {
	log(context.Background(), logger, slog.LevelDebug, msg, args...)
}

func Info(msg string, args ...any) {
	log(context.Background(), logger, slog.LevelInfo, msg, args...)
}

func Warn(msg string, args ...any) {
	log(context.Background(), logger, slog.LevelWarn, msg, args...)
}

func Error(msg string, args ...any) {
	log(context.Background(), logger, slog.LevelError, msg, args...)
}

// Panic logs at LevelPanic and then panics with msg.
func Panic(msg string, args ...any) {
	log(context.Background(), logger, LevelPanic, msg, args...)
	panic(msg)
}

// Fatal logs at LevelFatal and exits with status 1.
func Fatal(msg string, args ...any) {
	log(context.Background(), logger, LevelFatal, msg, args...)
	os.Exit(1)
}

// log must be called directly by an exported function, since the source position is taken at a fixed depth.
func log(ctx context.Context, l *slog.Logger, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	// skip runtime.Callers, log and the exported caller
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}
