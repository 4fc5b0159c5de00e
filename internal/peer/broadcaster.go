package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/signaling"
)

// BroadcasterConfig configures the publishing side of a WebRTC feed.
type BroadcasterConfig struct {
	SignalingURL string
	HostID       string
	ICEServers   []string
}

// Broadcaster registers as a host with the signaling server and sends every
// frame to each subscriber that connected to it. It implements
// transport.FrameSender.
type Broadcaster struct {
	cfg    BroadcasterConfig
	logger *slog.Logger
	sig    *signaling.Client

	mu         sync.Mutex
	publishers map[string]*Publisher
}

// NewBroadcaster creates a Broadcaster. Nothing is dialed until Connect.
func NewBroadcaster(cfg BroadcasterConfig, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		cfg:        cfg,
		logger:     logging.OrDiscard(logger),
		publishers: make(map[string]*Publisher),
	}
	b.sig = signaling.NewClient(cfg.SignalingURL, cfg.HostID, signaling.ClientTypeHost, signaling.Handler{
		OnRegistered: func() {
			b.logger.Info("registered with signaling server", "host_id", cfg.HostID)
		},
		OnOffer:        b.handleOffer,
		OnICECandidate: b.handleICECandidate,
		OnError: func(msg string) {
			b.logger.Error("signaling error", "message", msg)
		},
	}, b.logger)
	return b
}

// Connect dials the signaling server.
func (b *Broadcaster) Connect(ctx context.Context) error {
	return b.sig.Connect(ctx)
}

// Done is closed when the signaling connection ends.
func (b *Broadcaster) Done() <-chan struct{} {
	return b.sig.Done()
}

// SendFrame sends data to every subscriber whose channel is open. Send
// failures only affect the subscriber concerned.
func (b *Broadcaster) SendFrame(data []byte) error {
	b.mu.Lock()
	pubs := make([]*Publisher, 0, len(b.publishers))
	for _, p := range b.publishers {
		pubs = append(pubs, p)
	}
	b.mu.Unlock()

	for _, p := range pubs {
		if err := p.Transport().SendFrame(data); err != nil {
			b.logger.Debug("frame not sent", "peer", p.PeerID(), "error", err)
		}
	}
	return nil
}

// Subscribers returns the number of peers that have sent an offer.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.publishers)
}

// Close closes every peer connection and the signaling client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	pubs := b.publishers
	b.publishers = make(map[string]*Publisher)
	b.mu.Unlock()
	for _, p := range pubs {
		p.Close()
	}
	b.sig.Close()
}

func (b *Broadcaster) handleOffer(from string, payload json.RawMessage) {
	b.logger.Info("received offer", "from", from)

	pub, err := NewPublisher(b.sig, b.cfg.ICEServers, b.logger.With("peer", from))
	if err != nil {
		b.logger.Error("failed to create publisher peer", "error", err)
		return
	}

	b.mu.Lock()
	if old, ok := b.publishers[from]; ok {
		old.Close()
	}
	b.publishers[from] = pub
	b.mu.Unlock()

	if err := pub.HandleOffer(from, payload); err != nil {
		b.logger.Error("failed to handle offer", "from", from, "error", err)
		b.mu.Lock()
		if b.publishers[from] == pub {
			delete(b.publishers, from)
		}
		b.mu.Unlock()
		pub.Close()
	}
}

func (b *Broadcaster) handleICECandidate(from string, payload json.RawMessage) {
	b.mu.Lock()
	pub := b.publishers[from]
	b.mu.Unlock()
	if pub == nil {
		return
	}
	if err := pub.HandleICECandidate(payload); err != nil {
		b.logger.Error("failed to handle ICE candidate", "from", from, "error", err)
	}
}
