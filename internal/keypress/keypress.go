// Package keypress turns keystrokes on the controlling terminal into capture
// requests.
//
// The detector polls its input descriptor with a short timeout so it never
// blocks for long, and switches the terminal to raw mode only while it reads
// the single byte that is known to be waiting.
package keypress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/junsooki/framegrab/internal/logging"
)

// DefaultPollInterval bounds how long one poll waits for input.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrInputClosed is returned by Run when the input reaches end of file.
	ErrInputClosed = errors.New("keypress input closed")
	// ErrUnsupported is returned by Run on platforms without poll(2).
	ErrUnsupported = errors.New("keypress detection not supported on this platform")

	errWouldBlock = errors.New("input not ready")
)

// Request is one capture request. Any key produces one.
type Request struct {
	Key byte
	At  time.Time
}

// Detector reads single keystrokes from a file descriptor.
type Detector struct {
	fd       int
	interval time.Duration
	logger   *slog.Logger
	requests chan Request
}

// New creates a Detector reading from fd, usually os.Stdin.Fd().
func New(fd int, interval time.Duration, logger *slog.Logger) *Detector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Detector{
		fd:       fd,
		interval: interval,
		logger:   logging.OrDiscard(logger),
		requests: make(chan Request),
	}
}

// Requests returns the channel of capture requests. It is unbuffered: the
// detector does not read the next key until the previous request has been
// taken, so requests are handled one at a time and none are lost. The
// channel is closed when Run returns.
func (d *Detector) Requests() <-chan Request {
	return d.requests
}

// Run polls for input until ctx is done or the input is closed. It must be
// called once.
func (d *Detector) Run(ctx context.Context) error {
	defer close(d.requests)

	for {
		if ctx.Err() != nil {
			return nil
		}

		ready, err := waitReadable(d.fd, d.interval)
		if err != nil {
			return fmt.Errorf("poll input: %w", err)
		}
		if !ready {
			continue
		}

		key, err := d.readKey()
		switch {
		case errors.Is(err, errWouldBlock):
			continue
		case errors.Is(err, io.EOF):
			d.logger.Warn("input closed, no further captures can be requested")
			return ErrInputClosed
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		d.logger.Debug("key pressed", "key", key)
		select {
		case d.requests <- Request{Key: key, At: time.Now()}:
		case <-ctx.Done():
			return nil
		}
	}
}

// readKey consumes one byte with the terminal in raw mode. The previous
// mode is restored on every return path.
func (d *Detector) readKey() (byte, error) {
	restore := makeRaw(d.fd, d.logger)
	defer restore()
	return readByte(d.fd)
}
