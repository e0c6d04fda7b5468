// Package drizzle implements a mesh node: the UDP socket, the peer table,
// application handler registry, and the timers that drive keep-alives,
// state refreshes and arbitration sweeps. It ties together the packet,
// peer, routing and security packages into a runnable process.
package drizzle

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"

	"drizzle/logger"
	"drizzle/packet"
	"drizzle/peer"
	"drizzle/security"
)

// Handler is the application-level plug-in interface: Receive gets called
// for every DATA packet addressed to its registered name, StateChange for
// every peer transition across the whole node.
type Handler interface {
	Name() string
	Receive(p *peer.Peer, pkt *packet.Packet)
	StateChange(p *peer.Peer, state peer.State)
}

// Node is one participant in the mesh. It satisfies peer.Host structurally;
// it never imports the peer package's Host interface by name, which is what
// lets peer depend on Node's capabilities without Node's package depending
// on peer's consumer.
//
// Every field below except commands/stop is exclusively owned by the
// goroutine running Run: that is the single-threaded loop the design calls
// for, and it's also the only goroutine that ever calls into the peer
// package (command handlers reach the Node only through the peer.Host
// methods, invoked while dispatching a received packet or a timer tick).
// Anything that needs to touch the node from another goroutine — SyncTo
// called after Run has started, the admin HTTP endpoint, signal-triggered
// shutdown — goes through the commands channel instead of taking a lock.
type Node struct {
	cfg Config
	log logger.Logger

	conn *net.UDPConn

	// recvBuf is the single datagram-sized scratch buffer the loop reads
	// into. A free-list pool isn't warranted here: Run has exactly one
	// suspension point (the socket read) and reads, decodes, and
	// dispatches strictly in sequence within one goroutine, so there is
	// never more than one datagram in flight needing scratch space.
	// decode copies every attribute out of recvBuf before Run reuses it
	// on the next iteration.
	recvBuf []byte

	selves   map[packet.Addr]bool
	peers    map[packet.Addr]*peer.Peer
	handlers map[string]Handler

	commands chan func()
	ioErrors int
	running  atomic.Bool
	stop     chan struct{}

	timers []*timer
}

// NewNode constructs a Node bound to the configured port on every local
// interface. The socket is opened but the receive loop isn't started until
// Run is called.
func NewNode(cfg *Config, log logger.Logger) (*Node, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = logger.NullLogger{}
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, errors.Wrapf(err, "drizzle: listen on port %d", cfg.Port)
	}
	n := &Node{
		cfg:      *cfg,
		log:      log,
		conn:     conn,
		recvBuf:  make([]byte, cfg.BufSize),
		selves:   map[packet.Addr]bool{},
		peers:    map[packet.Addr]*peer.Peer{},
		handlers: map[string]Handler{},
		commands: make(chan func(), 256),
		stop:     make(chan struct{}),
	}
	n.selves[packet.AddrFromUDP(conn.LocalAddr().(*net.UDPAddr))] = true
	n.setupTimers()
	return n, nil
}

// LocalAddr returns the address the node's socket is bound to.
func (n *Node) LocalAddr() packet.Addr {
	return packet.AddrFromUDP(n.conn.LocalAddr().(*net.UDPAddr))
}

// RegisterHandler adds an application handler, addressable by name from
// DATA packets and notified of every peer state transition. Safe to call
// before Run, or after, from any goroutine.
func (n *Node) RegisterHandler(h Handler) error {
	errc := make(chan error, 1)
	n.enqueue(func() {
		if _, exists := n.handlers[h.Name()]; exists {
			errc <- errors.Errorf("drizzle: handler %q already registered", h.Name())
			return
		}
		n.handlers[h.Name()] = h
		errc <- nil
	})
	return <-errc
}

// enqueue runs fn on the loop goroutine. Before Run starts, commands have
// no reader yet, so enqueue runs fn inline instead of blocking forever.
func (n *Node) enqueue(fn func()) {
	if !n.running.Load() {
		fn()
		return
	}
	n.commands <- fn
}

// drainCommands runs every command queued since the last iteration,
// without blocking if none are pending.
func (n *Node) drainCommands() {
	for {
		select {
		case fn := <-n.commands:
			fn()
		default:
			return
		}
	}
}

// --- peer.Host -------------------------------------------------------------
// Every method below is only ever called from the loop goroutine (directly,
// or via a command enqueued through enqueue/drainCommands), so none of them
// need their own synchronization.

func (n *Node) Self(addr packet.Addr) bool {
	return n.selves[addr]
}

func (n *Node) AddSelfAddress(addr packet.Addr) bool {
	if n.selves[addr] {
		return true
	}
	if len(n.selves) >= n.cfg.MaxSelves {
		return false
	}
	n.selves[addr] = true
	return true
}

func (n *Node) GetPeer(addr packet.Addr) (*peer.Peer, bool) {
	p, ok := n.peers[addr]
	return p, ok
}

func (n *Node) GetOrCreatePeer(addr packet.Addr) (*peer.Peer, bool) {
	if n.selves[addr] {
		n.log.Warnf("refusing to create a peer at a known self address %v", addr)
		return nil, false
	}
	if p, ok := n.peers[addr]; ok {
		return p, true
	}
	if len(n.peers) >= n.cfg.MaxPeers {
		n.log.Errorf("(MAX_PEERS) peer table full at %d entries; refusing to add %v", n.cfg.MaxPeers, addr)
		return nil, false
	}
	p := peer.New(n, addr, peer.NotConnected)
	n.peers[addr] = p
	return p, true
}

func (n *Node) NewPeerAt(addr packet.Addr, state peer.State) (*peer.Peer, bool) {
	if n.selves[addr] {
		return nil, false
	}
	if existing, ok := n.peers[addr]; ok {
		existing.SetState(state)
		return existing, true
	}
	if len(n.peers) >= n.cfg.MaxPeers {
		n.log.Errorf("(MAX_PEERS) peer table full at %d entries; refusing to add %v", n.cfg.MaxPeers, addr)
		return nil, false
	}
	p := peer.New(n, addr, state)
	n.peers[addr] = p
	return p, true
}

func (n *Node) Peers() []*peer.Peer {
	out := make([]*peer.Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p)
	}
	return out
}

func (n *Node) PeerSnapshot() ([]packet.Addr, []peer.State) {
	addrs := make([]packet.Addr, 0, len(n.peers))
	states := make([]peer.State, 0, len(n.peers))
	for a, p := range n.peers {
		addrs = append(addrs, a)
		states = append(states, p.State())
	}
	return addrs, states
}

func (n *Node) HandlerNames() []string {
	names := make([]string, 0, len(n.handlers))
	for name := range n.handlers {
		names = append(names, name)
	}
	return names
}

func (n *Node) Dispatch(name string, p *peer.Peer, pkt *packet.Packet) {
	h, ok := n.handlers[name]
	if !ok {
		n.log.Debugf("data packet for unregistered handler %q from %v; dropping", name, p.Addr)
		return
	}
	h.Receive(p, pkt)
}

func (n *Node) DeliverLocal(data []byte, src packet.Addr) {
	pkt := packet.Decode(data, n.log)
	p, ok := n.GetOrCreatePeer(src)
	if !ok {
		n.log.Warnf("route: delivered payload from %v but could not materialize a peer for it; dropping", src)
		return
	}
	if p.State() == peer.Blocked {
		n.log.Debugf("route: dropping payload from blocked peer %v", src)
		return
	}
	p.Recv(pkt)
}

func (n *Node) Transmit(addr packet.Addr, pkt *packet.Packet) {
	b, err := packet.Encode(pkt)
	if err != nil {
		n.log.Errorf("encode %v packet for %v: %v", pkt.Cmd, addr, err)
		return
	}
	if _, err := n.conn.WriteToUDP(b, addr.UDPAddr()); err != nil {
		n.log.Debugf("send %v to %v: %v", pkt.Cmd, addr, err)
	}
}

func (n *Node) NotifyStateChange(p *peer.Peer, old, new peer.State) {
	n.log.Infof("%v: %v -> %v", p.Addr, old, new)
	for _, h := range n.handlers {
		h.StateChange(p, new)
	}
}

func (n *Node) Logger() logger.Logger { return n.log }

func (n *Node) SecurityPolicy() security.Policy { return n.cfg.Security }
