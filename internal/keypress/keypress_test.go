//go:build linux || darwin

package keypress

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func newPipeDetector(t *testing.T) (*Detector, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return New(int(r.Fd()), 10*time.Millisecond, nil), w
}

func runDetector(ctx context.Context, d *Detector) <-chan error {
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return done
}

func TestDetectorOneRequestPerByte(t *testing.T) {
	d, w := newPipeDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runDetector(ctx, d)

	if _, err := w.Write([]byte("a\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []byte("a\n") {
		select {
		case req := <-d.Requests():
			if req.Key != want {
				t.Errorf("Key = %q, want %q", req.Key, want)
			}
			if req.At.IsZero() {
				t.Error("request without timestamp")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for request for %q", want)
		}
	}

	select {
	case req := <-d.Requests():
		t.Fatalf("unexpected extra request %+v", req)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestDetectorHoldsKeysUntilRequestTaken(t *testing.T) {
	d, w := newPipeDetector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDetector(ctx, d)

	if _, err := w.Write([]byte("xy")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Simulate a slow capture: nothing is lost while the consumer is busy.
	time.Sleep(100 * time.Millisecond)
	var got []byte
	for len(got) < 2 {
		select {
		case req := <-d.Requests():
			got = append(got, req.Key)
			time.Sleep(30 * time.Millisecond)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %q", got)
		}
	}
	if string(got) != "xy" {
		t.Errorf("keys = %q, want %q", got, "xy")
	}
}

func TestDetectorInputClosed(t *testing.T) {
	d, w := newPipeDetector(t)
	done := runDetector(context.Background(), d)

	w.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrInputClosed) {
			t.Errorf("Run() error = %v, want ErrInputClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after input closed")
	}

	if _, ok := <-d.Requests(); ok {
		t.Error("Requests() channel still open after Run returned")
	}
}

func TestDetectorCancelWithoutInput(t *testing.T) {
	d, _ := newPipeDetector(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := d.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() took %v to notice cancellation", elapsed)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	d := New(0, 0, nil)
	if d.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", d.interval, DefaultPollInterval)
	}
}

func TestRawModeOnNonTerminalIsNoop(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	restore := Guard(int(r.Fd()), nil)
	restore()

	d := New(int(r.Fd()), 0, nil)
	if _, err := w.Write([]byte{'k'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	key, err := d.readKey()
	if err != nil {
		t.Fatalf("readKey() error = %v", err)
	}
	if key != 'k' {
		t.Errorf("readKey() = %q, want 'k'", key)
	}
}
