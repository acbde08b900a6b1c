package cli

import (
	"io"
	"log/slog"
)

// newLogger builds a text-handler slog.Logger writing to w, at debug
// level when verbose is set and info level otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
