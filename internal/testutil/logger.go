package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/travo-ai/travo/internal/log"
)

// Logger returns a logger that discards output.
func Logger(t *testing.T) log.Logger {
	t.Helper()
	return log.NewNop()
}

// CapturingLogger returns a debug-level logger writing to w, for tests
// asserting on log output.
func CapturingLogger(w io.Writer) log.Logger {
	return log.NewWithWriter(w, log.Config{Level: slog.LevelDebug})
}
