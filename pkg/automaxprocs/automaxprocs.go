// Package automaxprocs sizes GOMAXPROCS to the container CPU quota and logs the change.
package automaxprocs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"go.uber.org/automaxprocs/maxprocs"
)

// Init applies the CPU quota, if any. An explicit GOMAXPROCS environment variable takes precedence.
// The returned func restores the previous value.
func Init() (undo func(), err error) {
	l := logger.With(
		slogx.String("package", "automaxprocs"),
		slogx.String("event", "set_gomaxprocs"),
		slogx.Int("prev_maxprocs", runtime.GOMAXPROCS(0)),
	)
	printf := func(format string, v ...any) {
		attrs := make([]slog.Attr, 0, 1)
		// maxprocs passes the new value as the first argument, except when undoing.
		if value, ok := utils.Optional(v); ok {
			if _, set := os.LookupEnv("GOMAXPROCS"); set {
				value = runtime.GOMAXPROCS(0)
			}
			if n, ok := value.(int); ok {
				attrs = append(attrs, slogx.Int("set_maxprocs", n))
			}
		}
		l.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf(format, v...), attrs...)
	}

	undo, err = maxprocs.Set(maxprocs.Logger(printf), maxprocs.Min(1))
	if err != nil {
		return func() {}, errors.WithStack(err)
	}
	return undo, nil
}
