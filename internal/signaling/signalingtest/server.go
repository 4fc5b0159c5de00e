// Package signalingtest provides an in-process signaling server for tests.
// It implements the relay behavior of the real server: registration, host
// listing and forwarding of offer/answer/ICE messages to their target.
package signalingtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/junsooki/framegrab/internal/signaling"
)

type peer struct {
	id         string
	clientType string
	conn       *websocket.Conn
	writeMu    sync.Mutex
}

func (p *peer) send(msg signaling.Message) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.WriteJSON(msg)
}

// Server is a signaling relay listening on a local httptest server.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader
	mu       sync.Mutex
	peers    map[string]*peer
}

// NewServer starts a relay. Call Close when done.
func NewServer() *Server {
	s := &Server{peers: make(map[string]*peer)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// address of the relay.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// Hosts returns the IDs of registered hosts.
func (s *Server) Hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostsLocked()
}

func (s *Server) hostsLocked() []string {
	var ids []string
	for id, p := range s.peers {
		if p.clientType == signaling.ClientTypeHost {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) hostList() []signaling.HostInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []signaling.HostInfo
	for _, id := range s.hostsLocked() {
		list = append(list, signaling.HostInfo{ID: id, Online: true})
	}
	return list
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var self *peer
	defer func() {
		if self != nil {
			s.unregister(self)
		}
	}()

	for {
		var msg signaling.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case signaling.TypeRegister:
			self = &peer{id: msg.ID, clientType: msg.ClientType, conn: conn}
			s.mu.Lock()
			s.peers[msg.ID] = self
			s.mu.Unlock()
			self.send(signaling.Message{Type: signaling.TypeRegistered, ID: msg.ID})
			if msg.ClientType == signaling.ClientTypeHost {
				s.broadcast(signaling.Message{Type: signaling.TypeHostsUpdated, List: s.hostList()})
			}
		case signaling.TypeListHosts:
			if self != nil {
				self.send(signaling.Message{Type: signaling.TypeHosts, List: s.hostList()})
			}
		case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
			if self == nil {
				continue
			}
			s.mu.Lock()
			target := s.peers[msg.Target]
			s.mu.Unlock()
			if target == nil {
				self.send(signaling.Message{Type: signaling.TypeError, Msg: "unknown target " + msg.Target})
				continue
			}
			target.send(signaling.Message{Type: msg.Type, From: self.id, Payload: msg.Payload})
		case signaling.TypePing:
			if self != nil {
				self.send(signaling.Message{Type: signaling.TypePong})
			}
		}
	}
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	if s.peers[p.id] == p {
		delete(s.peers, p.id)
	}
	s.mu.Unlock()
	if p.clientType == signaling.ClientTypeHost {
		s.broadcast(signaling.Message{Type: signaling.TypeHostDisconnected, HostID: p.id})
	}
}

func (s *Server) broadcast(msg signaling.Message) {
	s.mu.Lock()
	var targets []*peer
	for _, p := range s.peers {
		if p.clientType == signaling.ClientTypeController {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()
	for _, p := range targets {
		p.send(msg)
	}
}
