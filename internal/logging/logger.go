// Package logging provides the structured logger used by interactive
// components, configured from DISVIEW_* environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	switch os.Getenv("DISVIEW_LOG_LEVEL") {
	case "debug":
		lg.SetLevel(log.DebugLevel)
	case "warn":
		lg.SetLevel(log.WarnLevel)
	case "error":
		lg.SetLevel(log.ErrorLevel)
	default:
		lg.SetLevel(log.InfoLevel)
	}

	prefix := os.Getenv("DISVIEW_LOG_PREFIX")
	if prefix == "" {
		prefix = "disview "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// DISVIEW_LOG_LEVEL: debug, info, warn, error (default: info)
// DISVIEW_LOG_PREFIX: prefix for log messages (default: "disview ")
// DISVIEW_LOG_TO_FILE: when set to "1", logs to a timestamped file instead
// of stderr, keeping the TUI's alternate screen clean
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("DISVIEW_LOG_TO_FILE") == "1" {
		logFile := fmt.Sprintf("disview-%s-debug.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// Fall back to stderr when the file cannot be created.
	}

	return NewLoggerWithWriter(output)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv("DISVIEW_LOG_LEVEL") == "debug"
}
