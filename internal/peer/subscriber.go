package peer

import (
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/signaling"
	"github.com/junsooki/framegrab/internal/transport"
)

// Subscriber manages the receiving side of the WebRTC connection: it offers
// to a host and accepts the host's frames data channel.
type Subscriber struct {
	pc        *webrtc.PeerConnection
	sig       *signaling.Client
	transport *transport.DataChannelTransport
	hostID    string
	logger    *slog.Logger
}

// NewSubscriber creates a Subscriber for hostID.
func NewSubscriber(sig *signaling.Client, hostID string, iceURLs []string, logger *slog.Logger) (*Subscriber, error) {
	logger = logging.OrDiscard(logger).With("host_id", hostID)
	pc, err := NewPeerConnection(iceURLs, logger)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		pc:        pc,
		sig:       sig,
		transport: transport.NewDataChannelTransport(nil),
		hostID:    hostID,
		logger:    logger,
	}

	// Accept the frames channel from the host.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		logger.Debug("data channel received", "label", dc.Label())
		if dc.Label() != transport.FramesLabel {
			return
		}
		dc.OnOpen(func() {
			logger.Info("frames data channel open")
		})
		s.transport.SetFramesChannel(dc)
	})

	// ICE candidate handling.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Error("failed to marshal ICE candidate", "error", err)
			return
		}
		_ = sig.SendICECandidate(hostID, data)
	})

	return s, nil
}

// Transport returns the DataChannelTransport frames arrive on.
func (s *Subscriber) Transport() *transport.DataChannelTransport {
	return s.transport
}

// Connect initiates the WebRTC connection by creating and sending an offer.
// A data channel must be negotiated by the offerer, so a placeholder
// channel is created before the offer.
func (s *Subscriber) Connect() error {
	if _, err := s.pc.CreateDataChannel("control", nil); err != nil {
		return err
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return err
	}

	if err := s.pc.SetLocalDescription(offer); err != nil {
		return err
	}

	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return err
	}

	return s.sig.SendOffer(s.hostID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (s *Subscriber) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return err
	}
	return s.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (s *Subscriber) HandleICECandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return err
	}
	return s.pc.AddICECandidate(candidate)
}

// Close shuts down the peer connection.
func (s *Subscriber) Close() error {
	if s.pc != nil {
		return s.pc.Close()
	}
	return nil
}
