package receiver

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/logging"
)

// Stats counts frames seen by a Receiver.
type Stats struct {
	Received uint64
	Failed   uint64
}

// Receiver decodes frame payloads from the feed and keeps the latest one in
// a Slot. It is driven by the transport's frame callback.
type Receiver struct {
	dec    decoder.Decoder
	slot   *frame.Slot
	logger *slog.Logger

	received atomic.Uint64
	failed   atomic.Uint64
}

// New creates a Receiver storing decoded frames into slot.
func New(dec decoder.Decoder, slot *frame.Slot, logger *slog.Logger) *Receiver {
	return &Receiver{
		dec:    dec,
		slot:   slot,
		logger: logging.OrDiscard(logger),
	}
}

// HandleFrame decodes one payload and replaces the held frame. A payload that
// fails to decode is logged and leaves the slot as it was.
func (r *Receiver) HandleFrame(data []byte) {
	img, err := r.dec.Decode(data)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to decode frame", "error", err, "bytes", len(data))
		return
	}

	seq := r.received.Add(1)
	r.slot.Store(&frame.Frame{
		Image:     img,
		Timestamp: time.Now(),
		Seq:       seq,
	})

	if seq == 1 {
		r.logger.Info("first frame received",
			"width", img.Bounds().Dx(),
			"height", img.Bounds().Dy())
		return
	}
	r.logger.Debug("frame received", "seq", seq, "bytes", len(data))
}

// Stats returns the current counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Received: r.received.Load(),
		Failed:   r.failed.Load(),
	}
}
