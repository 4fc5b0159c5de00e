package transport

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// FramesLabel is the label of the data channel carrying frames.
const FramesLabel = "frames"

// DataChannelTransport implements frame transport over a WebRTC DataChannel.
type DataChannelTransport struct {
	mu       sync.RWMutex
	framesDC *webrtc.DataChannel
	onFrame  func(data []byte)
}

// NewDataChannelTransport wraps the frames DataChannel. framesDC may be nil
// on the receiving side until the remote channel is announced.
func NewDataChannelTransport(framesDC *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	return t
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	t.mu.RLock()
	dc := t.framesDC
	t.mu.RUnlock()
	if dc == nil {
		return fmt.Errorf("frames data channel not set")
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("frames data channel %s", dc.ReadyState())
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	t.onFrame = cb
	t.mu.Unlock()
}

// SetFramesChannel sets or replaces the frames DataChannel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.deliver(msg.Data)
	})
}

func (t *DataChannelTransport) deliver(data []byte) {
	t.mu.RLock()
	cb := t.onFrame
	t.mu.RUnlock()
	if cb != nil {
		cb(data)
	}
}
