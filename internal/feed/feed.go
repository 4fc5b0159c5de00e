// Package feed publishes a stream of frames at a fixed rate. It backs the
// framefeed development tool, which stands in for a camera.
package feed

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/transport"
)

// Frames yields the images to publish, one per tick.
type Frames interface {
	Next() *image.RGBA
}

// Stats counts frames handled by a Feed.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Feed encodes frames from a Frames source and hands them to a sender.
type Feed struct {
	frames   Frames
	enc      encoder.Encoder
	sink     transport.FrameSender
	interval time.Duration
	logger   *slog.Logger

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New creates a Feed publishing fps frames per second.
func New(frames Frames, enc encoder.Encoder, sink transport.FrameSender, fps int, logger *slog.Logger) *Feed {
	if fps <= 0 {
		fps = 1
	}
	return &Feed{
		frames:   frames,
		enc:      enc,
		sink:     sink,
		interval: time.Second / time.Duration(fps),
		logger:   logging.OrDiscard(logger),
	}
}

// Run publishes until ctx is done. Encode and send failures are logged and
// counted; they never stop the feed.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.publish()
		}
	}
}

func (f *Feed) publish() {
	data, err := f.enc.Encode(f.frames.Next())
	if err != nil {
		f.dropped.Add(1)
		f.logger.Error("encode frame", "error", err)
		return
	}
	if err := f.sink.SendFrame(data); err != nil {
		f.dropped.Add(1)
		f.logger.Debug("send frame", "error", err)
		return
	}
	if n := f.sent.Add(1); n == 1 {
		f.logger.Info("first frame published", "bytes", len(data))
	}
}

// Stats returns the current counters.
func (f *Feed) Stats() Stats {
	return Stats{Sent: f.sent.Load(), Dropped: f.dropped.Load()}
}

// NewEncoder returns the payload encoder for format: "jpeg", "png" or "raw".
// encoding selects the pixel layout of raw payloads.
func NewEncoder(format, encoding string, quality int) (encoder.Encoder, error) {
	switch format {
	case "jpeg":
		return encoder.NewJPEGEncoder(quality), nil
	case "png":
		return encoder.NewPNGEncoder("speed")
	case "raw":
		return encoder.NewRawEncoder(encoding)
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}
