package migrate

import (
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"
)

var _ migrate.Logger = (*consoleLogger)(nil)

// consoleLogger prints migrate progress to the command output, tagged with the module name.
type consoleLogger struct {
	out     io.Writer
	module  string
	verbose bool
}

func newConsoleLogger(out io.Writer, module string, verbose bool) *consoleLogger {
	return &consoleLogger{out: out, module: module, verbose: verbose}
}

func (l *consoleLogger) Printf(format string, v ...interface{}) {
	fmt.Fprintf(l.out, "[%s] "+format, append([]any{l.module}, v...)...)
}

func (l *consoleLogger) Verbose() bool {
	return l.verbose
}
