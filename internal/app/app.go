// Package app wires a frame source, the latest-frame slot, the keypress
// detector and the writer into one running capture session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/framegrab/internal/config"
	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/keypress"
	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/peer"
	"github.com/junsooki/framegrab/internal/receiver"
	"github.com/junsooki/framegrab/internal/transport"
	"github.com/junsooki/framegrab/internal/writer"
)

// Options configures an App. Source, Fs, JPEG and PNG are required.
type Options struct {
	Source  transport.FrameSource
	Decoder decoder.Decoder
	Fs      afero.Fs
	SaveDir string
	JPEG    encoder.Encoder
	PNG     encoder.Encoder
	// InputFD is the descriptor keys are read from, usually stdin.
	InputFD      int
	PollInterval time.Duration
	Logger       *slog.Logger
}

// App is one capture session.
type App struct {
	source   transport.FrameSource
	receiver *receiver.Receiver
	writer   *writer.Writer
	detector *keypress.Detector
	logger   *slog.Logger
}

// New creates the output directories and the session components. A
// directory that cannot be created is returned as an error.
func New(opts Options) (*App, error) {
	if opts.Source == nil {
		return nil, errors.New("no frame source")
	}
	logger := logging.OrDiscard(opts.Logger)
	dec := opts.Decoder
	if dec == nil {
		dec = decoder.NewAutoDecoder()
	}

	slot := frame.NewSlot()
	w, err := writer.New(opts.Fs, opts.SaveDir, slot, opts.JPEG, opts.PNG, logger.With("component", "writer"))
	if err != nil {
		return nil, err
	}

	return &App{
		source:   opts.Source,
		receiver: receiver.New(dec, slot, logger.With("component", "receiver")),
		writer:   w,
		detector: keypress.New(opts.InputFD, opts.PollInterval, logger.With("component", "keypress")),
		logger:   logger,
	}, nil
}

// Writer returns the session's writer.
func (a *App) Writer() *writer.Writer {
	return a.writer
}

// Stats returns the receiver counters.
func (a *App) Stats() receiver.Stats {
	return a.receiver.Stats()
}

// Run connects the source and handles capture requests until ctx is done.
// Only a failed connect or a broken input poll are returned as errors; a
// closed input or a lost feed are logged and the session keeps going.
func (a *App) Run(ctx context.Context) error {
	a.source.OnFrame(a.receiver.HandleFrame)
	if err := a.source.Connect(ctx); err != nil {
		return fmt.Errorf("connect frame source: %w", err)
	}
	defer a.shutdown()

	dirs := a.writer.Dirs()
	a.logger.Info("ready, press any key to capture an image",
		"jpg_dir", dirs.JPG,
		"png_dir", dirs.PNG)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.detector.Run(gctx)
		if errors.Is(err, keypress.ErrInputClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		a.captureLoop()
		return nil
	})

	g.Go(func() error {
		select {
		case <-a.source.Done():
			a.logger.Warn("frame feed ended, the last frame can still be captured")
		case <-gctx.Done():
		}
		return nil
	})

	return g.Wait()
}

// captureLoop runs until the detector closes its request channel. Each
// request is handled to completion before the next one is taken.
func (a *App) captureLoop() {
	for req := range a.detector.Requests() {
		a.logger.Debug("capture requested", "key", req.Key)
		res, err := a.writer.Capture()
		switch {
		case errors.Is(err, writer.ErrNoFrame):
		case err != nil:
			a.logger.Warn("capture incomplete", "seq", res.Seq, "written", len(res.Files))
		}
	}
}

func (a *App) shutdown() {
	if err := a.source.Close(); err != nil {
		a.logger.Warn("failed to close frame source", "error", err)
	}
	stats := a.receiver.Stats()
	a.logger.Info("shutting down",
		"frames_received", stats.Received,
		"frames_failed", stats.Failed,
		"images_saved", a.writer.Count())
}

// NewSource builds the frame source selected by cfg.
func NewSource(cfg config.SourceConfig, logger *slog.Logger) (transport.FrameSource, error) {
	logger = logging.OrDiscard(logger)
	switch cfg.Type {
	case config.SourceWebSocket:
		return transport.NewWebSocketSource(cfg.URL, logger.With("component", "source")), nil
	case config.SourceWebRTC:
		return peer.NewSource(peer.SourceConfig{
			SignalingURL: cfg.SignalingURL,
			ClientID:     cfg.ClientID,
			HostID:       cfg.HostID,
			ICEServers:   cfg.ICEServers,
		}, logger.With("component", "source")), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}
