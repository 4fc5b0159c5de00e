package transport

import "context"

// FrameSender sends encoded video frames.
type FrameSender interface {
	SendFrame(data []byte) error
}

// FrameReceiver receives encoded video frames.
type FrameReceiver interface {
	OnFrame(callback func(data []byte))
}

// FrameSource is a subscription to a remote frame feed. OnFrame must be set
// before Connect; the callback runs on the source's own goroutine.
type FrameSource interface {
	FrameReceiver
	Connect(ctx context.Context) error
	// Done is closed when the feed stops delivering frames.
	Done() <-chan struct{}
	Close() error
}
