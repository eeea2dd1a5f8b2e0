package logger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors/errbase"
)

// errorDetailHandler adds the verbose message and the recorded stack trace of the first error attribute.
type errorDetailHandler struct {
	slog.Handler
}

func (h *errorDetailHandler) Handle(ctx context.Context, rec slog.Record) error {
	var detail []slog.Attr
	rec.Attrs(func(attr slog.Attr) bool {
		err, ok := attr.Value.Any().(error)
		if attr.Key != ErrorKey || !ok || err == nil {
			return true
		}
		detail = append(detail, slog.String(ErrorVerboseKey, fmt.Sprintf("%+v", err)))
		if st, ok := err.(errbase.StackTraceProvider); ok {
			detail = append(detail, slog.Any(ErrorStackTraceKey, stackLines(st.StackTrace())))
		}
		return false
	})
	if len(detail) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(detail...)
	}
	return h.Handler.Handle(ctx, rec)
}

func (h *errorDetailHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorDetailHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *errorDetailHandler) WithGroup(name string) slog.Handler {
	return &errorDetailHandler{Handler: h.Handler.WithGroup(name)}
}

// stackLines renders frames outermost first, without the runtime frames that start every goroutine.
func stackLines(frames errbase.StackTrace) []string {
	lines := make([]string, 0, len(frames))
	skipping := true
	for i := len(frames) - 1; i >= 0; i-- {
		pc := uintptr(frames[i]) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			lines = append(lines, "unknown")
			skipping = false
			continue
		}
		if skipping && strings.HasPrefix(fn.Name(), "runtime.") {
			continue
		}
		skipping = false
		file, line := fn.FileLine(pc)
		lines = append(lines, fmt.Sprintf("%s %s:%d", fn.Name(), file, line))
	}
	return lines
}

func replaceLevel(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || attr.Key != slog.LevelKey {
		return attr
	}
	level, ok := attr.Value.Any().(slog.Level)
	if !ok || level < LevelCritical {
		return attr
	}
	name, base := "FATAL", LevelFatal
	switch {
	case level < LevelPanic:
		name, base = "CRITICAL", LevelCritical
	case level < LevelFatal:
		name, base = "PANIC", LevelPanic
	}
	if level != base {
		name = fmt.Sprintf("%s%+d", name, level-base)
	}
	return slog.String(attr.Key, name)
}

// replaceDuration renders durations as integer milliseconds.
func replaceDuration(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindDuration {
		return slog.Int64(attr.Key, attr.Value.Duration().Milliseconds())
	}
	return attr
}

func replaceError(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != ErrorKey {
		return attr
	}
	if err, ok := attr.Value.Any().(error); ok && err != nil {
		return slog.String(ErrorKey, err.Error())
	}
	return attr
}
