package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/junsooki/framegrab/internal/logging"
)

const (
	pingPeriod = 25 * time.Second
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketSource subscribes to a frame feed served over WebSocket. Each
// binary message is one frame payload.
type WebSocketSource struct {
	url    string
	logger *slog.Logger

	conn    *websocket.Conn
	onFrame func(data []byte)

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewWebSocketSource creates a source for the feed at url (ws:// or wss://).
func NewWebSocketSource(url string, logger *slog.Logger) *WebSocketSource {
	return &WebSocketSource{
		url:    url,
		logger: logging.OrDiscard(logger),
		done:   make(chan struct{}),
	}
}

func (s *WebSocketSource) OnFrame(cb func(data []byte)) {
	s.onFrame = cb
}

// Connect dials the feed and starts reading frames.
func (s *WebSocketSource) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial frame feed %s: %w", s.url, err)
	}
	s.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop()
	go s.pingLoop()
	return nil
}

// Done is closed when the read loop ends.
func (s *WebSocketSource) Done() <-chan struct{} {
	return s.done
}

// Close shuts down the connection.
func (s *WebSocketSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return s.conn.Close()
}

func (s *WebSocketSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WebSocketSource) readLoop() {
	defer s.Close()
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.logger.Error("frame feed read error", "url", s.url, "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.logger.Debug("ignoring non-binary message", "type", msgType, "bytes", len(data))
			continue
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if s.onFrame != nil {
			s.onFrame(data)
		}
	}
}

func (s *WebSocketSource) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug("frame feed ping failed", "error", err)
			}
		}
	}
}
