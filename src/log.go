package softmodem

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger returns a logger writing to w at the named level ("debug",
// "info", "warn", "error").
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	var lvl, parseErr = log.ParseLevel(level)
	if parseErr != nil {
		return nil, fmt.Errorf("log level %q: %w", level, parseErr)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "softmodem",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// discardLogger is used when the caller does not supply one.
func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
