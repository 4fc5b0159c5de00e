package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/signaling"
)

// SourceConfig configures a WebRTC frame source.
type SourceConfig struct {
	SignalingURL string
	ClientID     string
	HostID       string
	ICEServers   []string
}

// newSubscriber is replaced in tests.
var newSubscriber = NewSubscriber

// Source subscribes to a host's frame feed over WebRTC. It implements
// transport.FrameSource.
type Source struct {
	cfg    SourceConfig
	logger *slog.Logger
	sig    *signaling.Client

	mu         sync.Mutex
	subscriber *Subscriber
	onFrame    func(data []byte)

	done      chan struct{}
	closeOnce sync.Once
}

// NewSource creates a WebRTC source. Nothing is dialed until Connect.
func NewSource(cfg SourceConfig, logger *slog.Logger) *Source {
	s := &Source{
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
		done:   make(chan struct{}),
	}
	s.sig = signaling.NewClient(cfg.SignalingURL, cfg.ClientID, signaling.ClientTypeController, signaling.Handler{
		OnRegistered:       s.handleRegistered,
		OnAnswer:           s.handleAnswer,
		OnICECandidate:     s.handleICECandidate,
		OnHostDisconnected: s.handleHostDisconnected,
		OnError: func(msg string) {
			s.logger.Error("signaling error", "message", msg)
		},
	}, s.logger)
	return s
}

func (s *Source) OnFrame(cb func(data []byte)) {
	s.mu.Lock()
	s.onFrame = cb
	s.mu.Unlock()
}

// Connect dials the signaling server. The offer to the host is sent once
// the server confirms registration.
func (s *Source) Connect(ctx context.Context) error {
	if s.cfg.HostID == "" {
		return fmt.Errorf("webrtc source requires a host id")
	}
	if err := s.sig.Connect(ctx); err != nil {
		return err
	}
	go func() {
		select {
		case <-s.sig.Done():
			s.logger.Warn("signaling connection closed", "reason", s.sig.Err())
			s.Close()
		case <-s.done:
		}
	}()
	return nil
}

// Done is closed when the source stops.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Close tears down the peer connection and the signaling client.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		sub := s.subscriber
		s.mu.Unlock()
		if sub != nil {
			err = sub.Close()
		}
		s.sig.Close()
	})
	return err
}

func (s *Source) handleRegistered() {
	s.logger.Info("registered with signaling server", "client_id", s.cfg.ClientID)
	if s.closed() {
		return
	}

	sub, err := newSubscriber(s.sig, s.cfg.HostID, s.cfg.ICEServers, s.logger)
	if err != nil {
		s.logger.Error("failed to create subscriber peer", "error", err)
		s.Close()
		return
	}
	sub.Transport().OnFrame(func(data []byte) {
		s.mu.Lock()
		cb := s.onFrame
		s.mu.Unlock()
		if cb != nil {
			cb(data)
		}
	})

	// Close may have run while the peer connection was being built. It
	// closes done before reading subscriber, so checking under mu is enough.
	s.mu.Lock()
	if s.closed() {
		s.mu.Unlock()
		sub.Close()
		return
	}
	s.subscriber = sub
	s.mu.Unlock()

	if err := sub.Connect(); err != nil {
		s.logger.Error("failed to send offer", "host_id", s.cfg.HostID, "error", err)
	}
}

func (s *Source) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Source) current() *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriber
}

func (s *Source) handleAnswer(from string, payload json.RawMessage) {
	sub := s.current()
	if sub == nil || from != s.cfg.HostID {
		return
	}
	if err := sub.HandleAnswer(payload); err != nil {
		s.logger.Error("failed to handle answer", "error", err)
	}
}

func (s *Source) handleICECandidate(from string, payload json.RawMessage) {
	sub := s.current()
	if sub == nil || from != s.cfg.HostID {
		return
	}
	if err := sub.HandleICECandidate(payload); err != nil {
		s.logger.Error("failed to handle ICE candidate", "error", err)
	}
}

func (s *Source) handleHostDisconnected(hostID string) {
	if hostID != s.cfg.HostID {
		return
	}
	s.logger.Warn("host disconnected", "host_id", hostID)
	s.Close()
}
