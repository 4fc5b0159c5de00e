package peer

import (
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/framegrab/internal/logging"
)

// DefaultICEServers is the default STUN configuration.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

// NewPeerConnection creates a PeerConnection using the given STUN/TURN URLs.
func NewPeerConnection(iceURLs []string, logger *slog.Logger) (*webrtc.PeerConnection, error) {
	cfg := webrtc.Configuration{}
	if len(iceURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	logger = logging.OrDiscard(logger)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer connection state changed", "state", state.String())
	})
	return pc, nil
}
