// Package peer implements the per-remote connection state machine: command
// dispatch, state transitions, keep-alive and state-refresh timers, and the
// bounded neighbor cache used for ROUTE forwarding decisions.
//
// Peer never imports the package that owns the node-wide socket and peer
// table. It depends on Host instead, a small interface satisfied
// structurally by that package, so the dependency points the other way:
// Host's implementation imports peer, not the reverse. This keeps the
// module's import graph acyclic without either package needing to know the
// other exists by name.
package peer

import (
	"time"

	"drizzle/logger"
	"drizzle/packet"
	"drizzle/security"
)

// State is a peer's position in the connection state machine.
type State int

const (
	NotConnected State = iota
	Direct
	Indirect
	Arbitrating
	Blocked
	DirectLocal
	IndirectRemote
)

var stateNames = map[State]string{
	NotConnected:   "NOT_CONNECTED",
	Direct:         "DIRECT",
	Indirect:       "INDIRECT",
	Arbitrating:    "ARBITRATING",
	Blocked:        "BLOCKED",
	DirectLocal:    "DIRECT_LOCAL",
	IndirectRemote: "INDIRECT_REMOTE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Host is everything a Peer needs from the node that owns it: the socket,
// the rest of the peer table, the registered application handlers, and the
// self-address set. Defined here rather than in the owning package so that
// package can implement it without peer importing it back.
type Host interface {
	// Self reports whether addr is one of this node's own advertised
	// addresses (loopback detection).
	Self(addr packet.Addr) bool
	// AddSelfAddress records addr as one of this node's own addresses.
	// Returns false if the node has already reached its self-address
	// bound.
	AddSelfAddress(addr packet.Addr) bool

	// GetPeer looks up an existing peer by address without creating one.
	GetPeer(addr packet.Addr) (*Peer, bool)
	// GetOrCreatePeer returns the peer at addr, creating it in
	// NotConnected state if absent. Returns false if addr is a self
	// address or the peer table is full.
	GetOrCreatePeer(addr packet.Addr) (*Peer, bool)
	// NewPeerAt creates a peer at addr in a specific initial state
	// (used when arbitration creates a peer that starts ARBITRATING
	// rather than NOT_CONNECTED). Returns false under the same
	// conditions as GetOrCreatePeer.
	NewPeerAt(addr packet.Addr, state State) (*Peer, bool)
	// Peers returns every peer currently known to the node.
	Peers() []*Peer
	// PeerSnapshot returns this node's full peer address list and the
	// parallel state vector, for PEERS responses.
	PeerSnapshot() ([]packet.Addr, []State)

	// HandlerNames lists the names of registered application handlers,
	// for HANDLERS responses.
	HandlerNames() []string
	// Dispatch routes a DATA packet's payload to the named application
	// handler. Unknown names are dropped silently (logged, not fatal).
	Dispatch(name string, p *Peer, pkt *packet.Packet)

	// DeliverLocal hands a ROUTE packet's payload to this node's own
	// receive path, as if it had arrived directly from src.
	DeliverLocal(data []byte, src packet.Addr)
	// Transmit sends pkt to an arbitrary address, independent of any
	// Peer record. Peer.Send is built on it.
	Transmit(addr packet.Addr, pkt *packet.Packet)

	// NotifyStateChange tells every registered handler that p changed
	// state, synchronously, before the triggering Recv/timer call
	// returns.
	NotifyStateChange(p *Peer, old, new State)

	Logger() logger.Logger
	SecurityPolicy() security.Policy
}

// Peer tracks one remote mesh participant: its address, connection state,
// advertised handler names, and the timestamps the keep-alive and
// state-refresh timers consult.
type Peer struct {
	Addr packet.Addr
	host Host

	state    State
	handlers []string

	lastActivity time.Time // last time any packet was received from this peer
	lastSent     time.Time // last time any packet was sent to this peer
	lastRefresh  time.Time // last time UpdateState ran

	neighbors *neighborCache
}

// New constructs a Peer at addr in the given initial state. Called only by
// a Host implementation; application code reaches peers through Host.
func New(host Host, addr packet.Addr, state State) *Peer {
	now := time.Now()
	return &Peer{
		Addr:         addr,
		host:         host,
		state:        state,
		lastActivity: now,
		lastSent:     now,
		lastRefresh:  now,
		neighbors:    newNeighborCache(),
	}
}

// State returns the peer's current connection state.
func (p *Peer) State() State {
	return p.state
}

// SetState transitions the peer to s, notifying every registered handler
// synchronously. A no-op transition (s == current state) still notifies:
// callers that want to skip redundant transitions should check State()
// first.
func (p *Peer) SetState(s State) {
	old := p.state
	p.state = s
	p.host.NotifyStateChange(p, old, s)
}

// Handlers returns the most recently advertised handler name list for this
// peer, as reported by a HANDLERS exchange.
func (p *Peer) Handlers() []string {
	return p.handlers
}

// SetHandlers records the peer's advertised handler names.
func (p *Peer) SetHandlers(names []string) {
	p.handlers = names
}

// AbsorbNeighbors replaces this peer's remembered neighbor advertisement,
// bounded by MaxNeighbors.
func (p *Peer) AbsorbNeighbors(addrs []packet.Addr, states []State) {
	p.neighbors.absorb(addrs, states)
}

// NeighborState reports what this peer last told us about addr.
func (p *Peer) NeighborState(addr packet.Addr) (State, bool) {
	return p.neighbors.get(addr)
}

// DirectNeighbor reports whether this peer has advertised addr as one of
// its own DIRECT neighbors. Satisfies routing.NeighborLookup.
func (p *Peer) DirectNeighbor(addr packet.Addr) bool {
	st, ok := p.neighbors.get(addr)
	return ok && st == Direct
}

// Send transmits pkt to this peer's address and records the send time.
func (p *Peer) Send(pkt *packet.Packet) {
	p.host.Transmit(p.Addr, pkt)
	p.lastSent = time.Now()
}

// Disconnect sends a DESYNC (unless already NOT_CONNECTED) and moves the
// peer to NOT_CONNECTED.
func (p *Peer) Disconnect() {
	if p.state != NotConnected {
		p.Send(packet.New(packet.DESYNC))
	}
	p.SetState(NotConnected)
}

// UpdateState refreshes our view of this peer's handler and peer tables by
// sending it empty HANDLERS and PEERS queries (which it answers with its
// own tables), and records the refresh time consulted by
// DoStateRefreshTimer.
func (p *Peer) UpdateState() {
	p.Send(packet.New(packet.HANDLERS))
	p.Send(packet.New(packet.PEERS))
	p.lastRefresh = time.Now()
}
