// Package mesh provides the TCP transport between synckv nodes: one
// connection per peer, a protocol handshake on every new connection,
// broadcast and unicast sends, and delivery of parsed inbound messages
// with sender identity and receipt time attached.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/DobryySoul/synckv/internal/syncproto"
	"github.com/DobryySoul/synckv/internal/wire"
)

const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Config holds everything a mesh node needs from its embedder.
type Config struct {
	// ID is this node's identity, sent in every handshake.
	ID string
	// Protocol is the negotiated protocol identifier. Connections whose
	// peer announces a different identifier are dropped, which is how a
	// mesh guarantees all members run the same policy.
	Protocol string
	// BindAddr is the TCP listen address (host:port, port 0 allowed).
	BindAddr string
	// Clock stamps inbound messages with their receipt time.
	Clock func() time.Time
	// Handler consumes inbound messages once a handshake completed.
	Handler func(ctx context.Context, env syncproto.Envelope) (bool, error)
	// OnPeer fires once per completed handshake.
	OnPeer func(p *Conn)
	// OnError receives background transport errors. Best-effort; must
	// be fast and non-blocking.
	OnError func(error)
}

// Node is a TCP mesh transport. It is safe for concurrent use.
type Node struct {
	cfg      Config
	listener net.Listener
	stop     chan struct{}
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	peersMu sync.RWMutex
	peers   map[string]*Conn
	known   map[string]struct{}
}

func NewNode(cfg Config) *Node {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Node{
		cfg:   cfg,
		stop:  make(chan struct{}),
		peers: make(map[string]*Conn),
		known: make(map[string]struct{}),
	}
}

func (n *Node) Start() error {
	if n.cfg.ID == "" || n.cfg.Protocol == "" {
		return fmt.Errorf("mesh: node id and protocol are required")
	}
	if n.cfg.Handler == nil {
		return fmt.Errorf("mesh: handler is required")
	}
	listener, err := net.Listen("tcp", n.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("mesh: listen %s: %w", n.cfg.BindAddr, err)
	}
	n.listener = listener
	n.ctx, n.cancel = context.WithCancel(context.Background())

	n.wg.Add(1)
	go n.acceptLoop()
	return nil
}

func (n *Node) Stop() error {
	close(n.stop)
	if n.cancel != nil {
		n.cancel()
	}
	if n.listener != nil {
		_ = n.listener.Close()
	}
	n.peersMu.Lock()
	for _, peer := range n.peers {
		_ = peer.conn.Close()
	}
	n.peersMu.Unlock()
	n.wg.Wait()
	return nil
}

// ID returns this node's identity.
func (n *Node) ID() string {
	return n.cfg.ID
}

// Addr returns the actual listen address, resolving port 0 binds.
func (n *Node) Addr() string {
	if n.listener == nil {
		return n.cfg.BindAddr
	}
	return n.listener.Addr().String()
}

// Peers returns the IDs of all peers with a completed handshake.
func (n *Node) Peers() []string {
	n.peersMu.RLock()
	out := make([]string, 0, len(n.peers))
	for id := range n.peers {
		out = append(out, id)
	}
	n.peersMu.RUnlock()
	return out
}

// AddPeers dials any addresses not already known. Suitable as a
// discovery callback.
func (n *Node) AddPeers(addrs []string) {
	self := n.Addr()
	for _, addr := range addrs {
		if addr == "" || addr == self {
			continue
		}
		n.peersMu.Lock()
		if _, ok := n.known[addr]; ok {
			n.peersMu.Unlock()
			continue
		}
		n.known[addr] = struct{}{}
		n.peersMu.Unlock()

		n.wg.Add(1)
		go n.dial(addr)
	}
}

// Broadcast sends msg to every connected peer. Per-peer send failures
// are reported through OnError; delivery is best-effort by design of
// the replication protocol.
func (n *Node) Broadcast(msg wire.Message) error {
	n.peersMu.RLock()
	peers := make([]*Conn, 0, len(n.peers))
	for _, peer := range n.peers {
		peers = append(peers, peer)
	}
	n.peersMu.RUnlock()

	for _, peer := range peers {
		if err := peer.Send(msg); err != nil {
			n.reportErr(fmt.Errorf("mesh: broadcast to %s: %w", peer.ID(), err))
		}
	}
	return nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-n.stop:
				return
			default:
				n.reportErr(fmt.Errorf("mesh: accept: %w", err))
				continue
			}
		}
		n.wg.Add(1)
		go n.handshake(conn)
	}
}

func (n *Node) dial(addr string) {
	defer n.wg.Done()
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		n.reportErr(fmt.Errorf("mesh: dial %s: %w", addr, err))
		return
	}
	n.wg.Add(1)
	n.handshake(conn)
}

// handshake runs the symmetric connection setup: both sides send
// [protocol, nodeID, listenAddr] and verify the peer's announcement
// before any store message flows.
func (n *Node) handshake(conn net.Conn) {
	defer n.wg.Done()

	hello := wire.Message{
		Flag: wire.FlagHandshake,
		Fields: [][]byte{
			[]byte(n.cfg.Protocol),
			[]byte(n.cfg.ID),
			[]byte(n.Addr()),
		},
	}
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := writeMessage(conn, hello); err != nil {
		n.reportErr(fmt.Errorf("mesh: send handshake: %w", err))
		_ = conn.Close()
		return
	}
	msg, err := readMessage(conn)
	if err != nil {
		n.reportErr(fmt.Errorf("mesh: read handshake: %w", err))
		_ = conn.Close()
		return
	}
	if msg.Flag != wire.FlagHandshake || len(msg.Fields) != 3 {
		n.reportErr(fmt.Errorf("mesh: unexpected first message from %s", conn.RemoteAddr()))
		_ = conn.Close()
		return
	}
	protocol, peerID, peerAddr := string(msg.Fields[0]), string(msg.Fields[1]), string(msg.Fields[2])
	if protocol != n.cfg.Protocol {
		// Incompatible policy (or foreign network); refuse to sync.
		_ = conn.Close()
		return
	}
	if peerID == n.cfg.ID {
		_ = conn.Close()
		return
	}
	_ = conn.SetDeadline(time.Time{})

	peer := &Conn{id: peerID, conn: conn}
	n.peersMu.Lock()
	if _, ok := n.peers[peerID]; ok {
		// Simultaneous connect from both sides; keep the first.
		n.peersMu.Unlock()
		_ = conn.Close()
		return
	}
	n.peers[peerID] = peer
	n.known[peerAddr] = struct{}{}
	n.peersMu.Unlock()

	// Reading starts before the handshake hook runs so that two peers
	// seeding each other concurrently cannot stall on full send buffers.
	n.wg.Add(1)
	go n.readLoop(peer)

	if n.cfg.OnPeer != nil {
		n.cfg.OnPeer(peer)
	}
}

func (n *Node) readLoop(peer *Conn) {
	defer n.wg.Done()
	defer n.drop(peer)

	for {
		msg, err := readMessage(peer.conn)
		if err != nil {
			select {
			case <-n.stop:
			default:
				if !errors.Is(err, net.ErrClosed) {
					n.reportErr(fmt.Errorf("mesh: read from %s: %w", peer.ID(), err))
				}
			}
			return
		}
		env := syncproto.Envelope{
			Msg:    msg,
			Sender: peer.ID(),
			Time:   n.cfg.Clock().Unix(),
		}
		if _, err := n.cfg.Handler(n.ctx, env); err != nil {
			n.reportErr(fmt.Errorf("mesh: handle message from %s: %w", peer.ID(), err))
		}
	}
}

func (n *Node) drop(peer *Conn) {
	_ = peer.conn.Close()
	n.peersMu.Lock()
	if current, ok := n.peers[peer.id]; ok && current == peer {
		delete(n.peers, peer.id)
	}
	n.peersMu.Unlock()
}

func (n *Node) reportErr(err error) {
	if n.cfg.OnError == nil || err == nil {
		return
	}
	n.cfg.OnError(err)
}
