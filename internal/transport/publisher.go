package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/junsooki/framegrab/internal/logging"
)

// DefaultSubscriberBuffer is the number of frames queued per subscriber
// before new frames are dropped for it.
const DefaultSubscriberBuffer = 4

type subscriber struct {
	msgs chan []byte
}

// Publisher serves a frame feed over WebSocket. Every connected client gets
// every frame as a binary message; a client that falls behind loses frames
// instead of slowing the others down.
type Publisher struct {
	upgrader websocket.Upgrader
	buffer   int
	logger   *slog.Logger

	subscribersMu sync.Mutex
	subscribers   map[*subscriber]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewPublisher creates a Publisher. buffer <= 0 uses DefaultSubscriberBuffer.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Publisher{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:      buffer,
		logger:      logging.OrDiscard(logger),
		subscribers: make(map[*subscriber]struct{}),
		done:        make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves
// or the publisher is closed.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{msgs: make(chan []byte, p.buffer)}
	p.addSubscriber(sub)
	defer p.removeSubscriber(sub)
	p.logger.Info("subscriber connected", "remote", r.RemoteAddr)

	// Reading is needed to process control frames and to notice the client
	// going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-sub.msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				p.logger.Info("subscriber write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-gone:
			p.logger.Info("subscriber disconnected", "remote", r.RemoteAddr)
			return
		case <-p.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed stopped"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// SendFrame queues data for every subscriber. It never blocks.
func (p *Publisher) SendFrame(data []byte) error {
	p.subscribersMu.Lock()
	defer p.subscribersMu.Unlock()

	for sub := range p.subscribers {
		select {
		case sub.msgs <- data:
		default:
			p.logger.Debug("subscriber lagging, frame dropped")
		}
	}
	return nil
}

// Subscribers returns the number of connected clients.
func (p *Publisher) Subscribers() int {
	p.subscribersMu.Lock()
	defer p.subscribersMu.Unlock()
	return len(p.subscribers)
}

// Close disconnects all subscribers.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Publisher) addSubscriber(sub *subscriber) {
	p.subscribersMu.Lock()
	p.subscribers[sub] = struct{}{}
	p.subscribersMu.Unlock()
}

func (p *Publisher) removeSubscriber(sub *subscriber) {
	p.subscribersMu.Lock()
	delete(p.subscribers, sub)
	p.subscribersMu.Unlock()
}
