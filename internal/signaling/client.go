package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/junsooki/framegrab/internal/logging"
)

// Heartbeat defaults. A feed link is considered dead when nothing, not even
// a pong, arrives within DefaultPongWait.
const (
	DefaultPingInterval = 25 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultWriteWait    = 10 * time.Second
)

var (
	// ErrHeartbeatTimeout is reported by Err when the server went silent.
	ErrHeartbeatTimeout = errors.New("signaling heartbeat timed out")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("signaling client closed")
	// ErrNotConnected is returned when sending before Connect.
	ErrNotConnected = errors.New("signaling client not connected")
)

// Handler callbacks for incoming signaling messages.
type Handler struct {
	OnRegistered       func()
	OnOffer            func(from string, payload json.RawMessage)
	OnAnswer           func(from string, payload json.RawMessage)
	OnICECandidate     func(from string, payload json.RawMessage)
	OnHostsUpdated     func(hosts []HostInfo)
	OnHostDisconnected func(hostID string)
	OnError            func(msg string)
}

// Option tunes a Client.
type Option func(*Client)

// WithHeartbeat sets how often the client pings and how long it waits for
// any message before giving up on the connection.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pingInterval = interval
		}
		if timeout > 0 {
			c.pongWait = timeout
		}
	}
}

// Client is a WebSocket signaling client. A client is single use: once the
// connection ends, Done is closed and Err tells why.
type Client struct {
	url        string
	clientID   string
	clientType string
	handler    Handler
	logger     *slog.Logger

	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
	err    error
}

// NewClient creates a signaling client.
func NewClient(url, clientID, clientType string, handler Handler, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		url:          url,
		clientID:     clientID,
		clientType:   clientType,
		handler:      handler,
		logger:       logging.OrDiscard(logger).With("signaling", url, "client_id", clientID),
		pingInterval: DefaultPingInterval,
		pongWait:     DefaultPongWait,
		writeWait:    DefaultWriteWait,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the identifier this client registers under.
func (c *Client) ID() string {
	return c.clientID
}

// Connect dials the signaling server, registers, and starts the read and
// heartbeat loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClientClosed
	case c.conn != nil:
		c.mu.Unlock()
		return fmt.Errorf("signaling client %s already connected", c.clientID)
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.send(Message{Type: TypeRegister, ID: c.clientID, ClientType: c.clientType}); err != nil {
		c.shutdown(fmt.Errorf("signaling register: %w", err))
		return fmt.Errorf("signaling register: %w", err)
	}

	go c.readLoop(conn)
	go c.pingLoop()
	return nil
}

// Done is closed once the connection is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended: nil while it is up or after a
// local Close, ErrHeartbeatTimeout when the server went silent, or the read
// error that ended it.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close shuts down the connection.
func (c *Client) Close() {
	c.shutdown(nil)
}

// shutdown closes the connection once, keeping the first reason.
func (c *Client) shutdown(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = reason
	close(c.done)
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait))
		c.conn.Close()
	}
}

// SendOffer sends an SDP offer to target.
func (c *Client) SendOffer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeOffer, Target: target, Payload: payload})
}

// SendAnswer sends an SDP answer to target.
func (c *Client) SendAnswer(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeAnswer, Target: target, Payload: payload})
}

// SendICECandidate sends an ICE candidate to target.
func (c *Client) SendICECandidate(target string, payload json.RawMessage) error {
	return c.send(Message{Type: TypeICECandidate, Target: target, Payload: payload})
}

// RequestHostList asks the server for available hosts.
func (c *Client) RequestHostList() error {
	return c.send(Message{Type: TypeListHosts})
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("signaling send %s: %w", msg.Type, err)
	}
	return nil
}

// readLoop dispatches messages until the connection fails. Every message
// pushes the read deadline out by pongWait.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			c.shutdown(fmt.Errorf("signaling read: %w", err))
			return
		}
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.readFailed(err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) readFailed(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("signaling server silent, dropping connection", "timeout", c.pongWait)
		c.shutdown(ErrHeartbeatTimeout)
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("signaling server closed the connection")
	} else {
		c.logger.Error("signaling read error", "error", err)
	}
	c.shutdown(fmt.Errorf("signaling read: %w", err))
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case TypeRegistered:
		c.logger.Debug("registered", "client_type", c.clientType)
		if c.handler.OnRegistered != nil {
			c.handler.OnRegistered()
		}
	case TypeOffer:
		if c.handler.OnOffer != nil {
			c.handler.OnOffer(msg.From, msg.Payload)
		}
	case TypeAnswer:
		if c.handler.OnAnswer != nil {
			c.handler.OnAnswer(msg.From, msg.Payload)
		}
	case TypeICECandidate:
		if c.handler.OnICECandidate != nil {
			c.handler.OnICECandidate(msg.From, msg.Payload)
		}
	case TypeHosts, TypeHostsUpdated:
		if c.handler.OnHostsUpdated != nil {
			c.handler.OnHostsUpdated(msg.List)
		}
	case TypeHostDisconnected:
		if c.handler.OnHostDisconnected != nil {
			c.handler.OnHostDisconnected(msg.HostID)
		}
	case TypeError:
		if c.handler.OnError != nil {
			c.handler.OnError(msg.Msg)
		}
	case TypePong:
		// the read deadline was already extended
	default:
		c.logger.Debug("unknown signaling message", "type", msg.Type)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(Message{Type: TypePing}); err != nil && !errors.Is(err, ErrClientClosed) {
				c.logger.Warn("signaling ping failed", "error", err)
			}
		}
	}
}
