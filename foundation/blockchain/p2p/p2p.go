// Package p2p carries protocol messages between nodes over websocket
// connections.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Route is the path nodes serve the peer connection on.
const Route = "/v1/p2p"

// HostHeader carries the host a dialing node accepts connections on.
const HostHeader = "X-Node-Host"

// ErrShutdown is returned when the server is shutting down.
var ErrShutdown = errors.New("p2p server shutting down")

// EventHandler defines a function that is called when events occur in the
// processing of connections.
type EventHandler func(v string, args ...any)

// Envelope is one message received from a peer.
type Envelope struct {
	Data []byte
	Peer *Peer
}

// Config represents the configuration required to start the p2p server.
type Config struct {
	Host           string
	KnownPeers     *peer.PeerSet
	InboundSize    int
	SendQueueSize  int
	RateLimit      rate.Limit
	RateBurst      int
	KnownHashCache int
	MaxMessageSize int64
	EvHandler      EventHandler
}

// Server accepts and dials peer connections. Every message read off any
// connection is delivered on one inbound channel.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	inbound  chan Envelope
	wg       sync.WaitGroup

	mu     sync.RWMutex
	peers  map[*Peer]struct{}
	closed bool
}

// New constructs a p2p server.
func New(cfg Config) *Server {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}
	cfg.EvHandler = ev

	if cfg.KnownPeers == nil {
		cfg.KnownPeers = peer.NewPeerSet()
	}
	if cfg.InboundSize <= 0 {
		cfg.InboundSize = 1000
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 256
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.KnownHashCache <= 0 {
		cfg.KnownHashCache = 4096
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16 << 20
	}

	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		inbound: make(chan Envelope, cfg.InboundSize),
		peers:   make(map[*Peer]struct{}),
	}
}

// Inbound returns the channel every received message is delivered on. The
// channel is closed once Shutdown has stopped every connection.
func (s *Server) Inbound() <-chan Envelope {
	return s.inbound
}

// Host returns the host this node accepts connections on.
func (s *Server) Host() string {
	return s.cfg.Host
}

// KnownPeers returns the set of peers this node knows about.
func (s *Server) KnownPeers() *peer.PeerSet {
	return s.cfg.KnownPeers
}

// ServeHTTP upgrades the request to a peer connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.EvHandler("p2p: accept: %s: ERROR: %s", r.RemoteAddr, err)
		return
	}

	addr := r.Header.Get(HostHeader)
	if addr == "" {
		addr = r.RemoteAddr
	} else {
		s.cfg.KnownPeers.Add(peer.New(addr))
	}

	if _, err := s.register(conn, addr); err != nil {
		conn.Close()
		s.cfg.EvHandler("p2p: accept: %s: ERROR: %s", addr, err)
		return
	}

	s.cfg.EvHandler("p2p: accept: %s: connected", addr)
}

// Connect dials the peer's host. A host that is already connected returns the
// existing connection.
func (s *Server) Connect(ctx context.Context, host string) (*Peer, error) {
	if p, exists := s.lookup(host); exists {
		return p, nil
	}

	u := url.URL{Scheme: "ws", Host: host, Path: Route}

	header := http.Header{}
	if s.cfg.Host != "" {
		header.Set(HostHeader, s.cfg.Host)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	p, err := s.register(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s.cfg.KnownPeers.Add(peer.New(host))
	s.cfg.EvHandler("p2p: connect: %s: connected", host)

	return p, nil
}

// Broadcast queues the message on every connection without blocking. Hash
// announcements are trimmed per connection to the hashes that peer has not
// already announced or been sent. The number of connections the message was
// queued on is returned.
func (s *Server) Broadcast(msg message.Message) int {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	var sent int
	for _, p := range peers {
		if p.announce(msg) {
			sent++
		}
	}

	return sent
}

// Connected returns the peers with an open connection.
func (s *Server) Connected() []peer.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]peer.Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, peer.New(p.addr))
	}

	return peers
}

// Shutdown closes every connection, waits for their goroutines to finish and
// then closes the inbound channel.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	for p := range s.peers {
		p.close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	close(s.inbound)
}

// =============================================================================

func (s *Server) register(conn *websocket.Conn, addr string) (*Peer, error) {
	p, err := newPeer(conn, addr, s.cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrShutdown
	}

	s.peers[p] = struct{}{}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		p.writePump()
	}()
	go func() {
		defer s.wg.Done()
		p.readPump(s.inbound)
		s.unregister(p)
	}()

	return p, nil
}

func (s *Server) unregister(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()

	p.close()
	s.cfg.EvHandler("p2p: %s: disconnected", p.addr)
}

func (s *Server) lookup(addr string) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for p := range s.peers {
		if p.addr == addr {
			return p, true
		}
	}

	return nil, false
}

// =============================================================================

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)
