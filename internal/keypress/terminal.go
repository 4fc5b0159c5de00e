package keypress

import (
	"log/slog"

	"golang.org/x/term"

	"github.com/junsooki/framegrab/internal/logging"
)

// makeRaw puts fd into raw mode and returns the function that restores the
// previous state. Descriptors that are not terminals are left alone.
// Failures are logged and never fatal.
func makeRaw(fd int, logger *slog.Logger) (restore func()) {
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		logger.Warn("failed to switch terminal to raw mode", "error", err)
		return func() {}
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			logger.Warn("failed to restore terminal mode", "error", err)
		}
	}
}

// Guard records the current terminal state of fd and returns a function
// that puts it back. It is deferred at startup so the terminal is usable
// after shutdown whatever happened in between.
func Guard(fd int, logger *slog.Logger) (restore func()) {
	logger = logging.OrDiscard(logger)
	if !term.IsTerminal(fd) {
		logger.Debug("input is not a terminal, raw mode disabled")
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		logger.Warn("failed to save terminal state", "error", err)
		return func() {}
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			logger.Warn("failed to restore terminal state", "error", err)
		}
	}
}
