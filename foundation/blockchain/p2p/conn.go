package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Peer is the handle to one open connection. Writes never block: messages are
// queued and written by a dedicated goroutine, and a full queue drops the
// message.
type Peer struct {
	addr      string
	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	known     *lru.Cache[hash.Digest, struct{}]
	maxSize   int64
	evHandler EventHandler

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newPeer(conn *websocket.Conn, addr string, cfg Config) (*Peer, error) {
	known, err := lru.New[hash.Digest, struct{}](cfg.KnownHashCache)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := Peer{
		addr:      addr,
		conn:      conn,
		send:      make(chan []byte, cfg.SendQueueSize),
		limiter:   rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		known:     known,
		maxSize:   cfg.MaxMessageSize,
		evHandler: cfg.EvHandler,
		ctx:       ctx,
		cancel:    cancel,
	}

	return &p, nil
}

// Addr returns the address of the peer.
func (p *Peer) Addr() string {
	return p.addr
}

// Send queues the message for the peer. It reports false if the message was
// dropped because the connection is closed or its queue is full.
func (p *Peer) Send(msg message.Message) bool {
	data, err := msg.Encode()
	if err != nil {
		p.evHandler("p2p: %s: send: %s: ERROR: %s", p.addr, msg.Kind, err)
		return false
	}

	return p.write(msg.Kind, data)
}

// Knows reports if the peer announced the hash or was sent an announcement
// carrying it.
func (p *Peer) Knows(h hash.Digest) bool {
	return p.known.Contains(h)
}

// =============================================================================

func (p *Peer) write(kind message.Kind, data []byte) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.send <- data:
		return true
	default:
		p.evHandler("p2p: %s: send: %s: WARNING: queue full, message dropped", p.addr, kind)
		return false
	}
}

// announce queues the message, trimming a hash announcement to the hashes the
// peer does not know about.
func (p *Peer) announce(msg message.Message) bool {
	switch msg.Kind {
	case message.KindNewBlockHashes, message.KindNewTransactionHashes:
	default:
		return p.Send(msg)
	}

	hashes, err := msg.Hashes()
	if err != nil {
		p.evHandler("p2p: %s: announce: ERROR: %s", p.addr, err)
		return false
	}

	var unknown []hash.Digest
	for _, h := range hashes {
		if !p.known.Contains(h) {
			unknown = append(unknown, h)
		}
	}

	if len(unknown) == 0 {
		return false
	}

	trimmed, err := message.New(msg.Kind, unknown)
	if err != nil {
		p.evHandler("p2p: %s: announce: ERROR: %s", p.addr, err)
		return false
	}

	if !p.Send(trimmed) {
		return false
	}

	for _, h := range unknown {
		p.known.Add(h, struct{}{})
	}

	return true
}

// observe records the hashes the peer announced to this node.
func (p *Peer) observe(data []byte) {
	msg, err := message.Decode(data)
	if err != nil {
		return
	}

	switch msg.Kind {
	case message.KindNewBlockHashes, message.KindNewTransactionHashes:
		hashes, err := msg.Hashes()
		if err != nil {
			return
		}
		for _, h := range hashes {
			p.known.Add(h, struct{}{})
		}
	}
}

func (p *Peer) close() {
	p.once.Do(func() {
		p.cancel()
		p.conn.Close()
	})
}

// =============================================================================

// readPump delivers every message read off the connection to the inbound
// channel until the connection fails or is closed.
func (p *Peer) readPump(inbound chan<- Envelope) {
	p.evHandler("p2p: %s: readPump: G started", p.addr)
	defer p.evHandler("p2p: %s: readPump: G completed", p.addr)

	p.conn.SetReadLimit(p.maxSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.evHandler("p2p: %s: readPump: ERROR: %s", p.addr, err)
			}
			return
		}

		if kind != websocket.BinaryMessage {
			continue
		}

		if err := p.limiter.Wait(p.ctx); err != nil {
			return
		}

		p.observe(data)

		select {
		case inbound <- Envelope{Data: data, Peer: p}:
		case <-p.ctx.Done():
			return
		}
	}
}

// writePump writes queued messages to the connection and keeps the
// connection alive with pings.
func (p *Peer) writePump() {
	p.evHandler("p2p: %s: writePump: G started", p.addr)
	defer p.evHandler("p2p: %s: writePump: G completed", p.addr)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				p.evHandler("p2p: %s: writePump: ERROR: %s", p.addr, err)
				p.close()
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}

		case <-p.ctx.Done():
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
