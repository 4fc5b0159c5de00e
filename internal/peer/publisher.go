package peer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/signaling"
	"github.com/junsooki/framegrab/internal/transport"
)

// Publisher manages the host side of one WebRTC connection: it answers a
// subscriber's offer and sends frames on the frames data channel.
type Publisher struct {
	pc        *webrtc.PeerConnection
	sig       *signaling.Client
	transport *transport.DataChannelTransport
	logger    *slog.Logger

	mu     sync.Mutex
	peerID string // the subscriber we're connected to
}

// NewPublisher creates a Publisher peer manager.
func NewPublisher(sig *signaling.Client, iceURLs []string, logger *slog.Logger) (*Publisher, error) {
	logger = logging.OrDiscard(logger)
	pc, err := NewPeerConnection(iceURLs, logger)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		pc:     pc,
		sig:    sig,
		logger: logger,
	}

	// Frames are latency sensitive: unordered, no retransmits. A lost frame
	// is replaced by the next one.
	framesOrdered := false
	framesMaxRetransmits := uint16(0)
	framesDC, err := pc.CreateDataChannel(transport.FramesLabel, &webrtc.DataChannelInit{
		Ordered:        &framesOrdered,
		MaxRetransmits: &framesMaxRetransmits,
	})
	if err != nil {
		pc.Close()
		return nil, err
	}
	framesDC.OnOpen(func() {
		logger.Info("frames data channel open", "peer", p.PeerID())
	})
	p.transport = transport.NewDataChannelTransport(framesDC)

	// ICE candidate handling.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		peerID := p.PeerID()
		if c == nil || peerID == "" {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Error("failed to marshal ICE candidate", "error", err)
			return
		}
		_ = sig.SendICECandidate(peerID, data)
	})

	return p, nil
}

// Transport returns the DataChannelTransport for sending frames.
func (p *Publisher) Transport() *transport.DataChannelTransport {
	return p.transport
}

// PeerID returns the subscriber this publisher answered, if any.
func (p *Publisher) PeerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerID
}

// HandleOffer processes an incoming offer from a subscriber.
func (p *Publisher) HandleOffer(from string, payload json.RawMessage) error {
	p.mu.Lock()
	p.peerID = from
	p.mu.Unlock()

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return err
	}

	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return err
	}

	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return err
	}

	return p.sig.SendAnswer(from, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate.
func (p *Publisher) HandleICECandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return p.pc.AddICECandidate(candidate)
}

// Close shuts down the peer connection.
func (p *Publisher) Close() error {
	if p.pc != nil {
		return p.pc.Close()
	}
	return nil
}
