package framefeed

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/junsooki/framegrab/internal/config"
	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/transport"
)

func TestRunServesWebSocketFeed(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Listen = "127.0.0.1:0"
	cfg.Feed.FPS = 50
	cfg.Feed.Width, cfg.Feed.Height = 40, 30
	cfg.Feed.Format = config.FormatRaw
	cfg.Feed.Encoding = decoder.EncodingBGR8

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrs := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, logging.Discard(), func(addr string) { addrs <- addr })
	}()

	var addr string
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("run() returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed never started listening")
	}

	frames := make(chan []byte, 16)
	src := transport.NewWebSocketSource("ws://"+addr+cfg.Feed.Path, nil)
	src.OnFrame(func(data []byte) {
		select {
		case frames <- data:
		default:
		}
	})
	if err := src.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer src.Close()

	select {
	case data := <-frames:
		img, err := decoder.NewAutoDecoder().Decode(data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
			t.Errorf("frame size = %dx%d, want 40x30", b.Dx(), b.Dy())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Transport = "carrier-pigeon"
	if err := run(context.Background(), cfg, logging.Discard(), nil); err == nil {
		t.Fatal("run() with an unknown transport should fail")
	}
}

func TestNewFrames(t *testing.T) {
	cfg := config.Default().Feed
	cfg.Width, cfg.Height = 14, 7

	frames, err := newFrames(afero.NewMemMapFs(), cfg, nil)
	if err != nil {
		t.Fatalf("newFrames() error = %v", err)
	}
	if _, ok := frames.(*frame.Pattern); !ok {
		t.Errorf("newFrames() without a directory = %T, want *frame.Pattern", frames)
	}

	fs := afero.NewMemMapFs()
	data, err := encoder.NewJPEGEncoder(90).Encode(frame.Solid(4, 4, color.RGBA{B: 255, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/images/one.jpg", data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg.SourceDir = "/images"
	frames, err = newFrames(fs, cfg, nil)
	if err != nil {
		t.Fatalf("newFrames() error = %v", err)
	}
	if b := frames.Next().Bounds(); b.Dx() != 4 {
		t.Errorf("directory frame width = %d, want 4", b.Dx())
	}
}

func TestRootCommandFlags(t *testing.T) {
	if rootCmd.Use != "framefeed" {
		t.Errorf("rootCmd.Use = %q", rootCmd.Use)
	}
	for name := range flagKeys {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s is not defined", name)
		}
	}
}
