package peer

import (
	"testing"
	"time"

	"drizzle/logger"
	"drizzle/packet"
	"drizzle/security"
)

// testHost is a minimal in-memory Host good enough to drive Peer/dispatch
// tests without any socket or goroutine.
type testHost struct {
	selves   map[packet.Addr]bool
	maxSelf  int
	peers    map[packet.Addr]*Peer
	maxPeers int
	handlers map[string]int // name -> times dispatched
	sent     map[packet.Addr][]*packet.Packet
	changes  []string
}

func newTestHost() *testHost {
	return &testHost{
		selves:   map[packet.Addr]bool{},
		maxSelf:  8,
		peers:    map[packet.Addr]*Peer{},
		maxPeers: 4096,
		handlers: map[string]int{},
		sent:     map[packet.Addr][]*packet.Packet{},
	}
}

func (h *testHost) Self(addr packet.Addr) bool { return h.selves[addr] }

func (h *testHost) AddSelfAddress(addr packet.Addr) bool {
	if h.selves[addr] {
		return true
	}
	if len(h.selves) >= h.maxSelf {
		return false
	}
	h.selves[addr] = true
	return true
}

func (h *testHost) GetPeer(addr packet.Addr) (*Peer, bool) {
	p, ok := h.peers[addr]
	return p, ok
}

func (h *testHost) GetOrCreatePeer(addr packet.Addr) (*Peer, bool) {
	if h.selves[addr] {
		return nil, false
	}
	if p, ok := h.peers[addr]; ok {
		return p, true
	}
	if len(h.peers) >= h.maxPeers {
		return nil, false
	}
	p := New(h, addr, NotConnected)
	h.peers[addr] = p
	return p, true
}

func (h *testHost) NewPeerAt(addr packet.Addr, state State) (*Peer, bool) {
	if h.selves[addr] {
		return nil, false
	}
	if len(h.peers) >= h.maxPeers {
		return nil, false
	}
	p := New(h, addr, state)
	h.peers[addr] = p
	return p, true
}

func (h *testHost) Peers() []*Peer {
	out := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		out = append(out, p)
	}
	return out
}

func (h *testHost) PeerSnapshot() ([]packet.Addr, []State) {
	addrs := make([]packet.Addr, 0, len(h.peers))
	states := make([]State, 0, len(h.peers))
	for a, p := range h.peers {
		addrs = append(addrs, a)
		states = append(states, p.State())
	}
	return addrs, states
}

func (h *testHost) HandlerNames() []string {
	names := make([]string, 0, len(h.handlers))
	for n := range h.handlers {
		names = append(names, n)
	}
	return names
}

func (h *testHost) Dispatch(name string, p *Peer, pkt *packet.Packet) {
	h.handlers[name]++
}

func (h *testHost) DeliverLocal(data []byte, src packet.Addr) {}

func (h *testHost) Transmit(addr packet.Addr, pkt *packet.Packet) {
	h.sent[addr] = append(h.sent[addr], pkt)
}

func (h *testHost) NotifyStateChange(p *Peer, old, newState State) {
	h.changes = append(h.changes, old.String()+"->"+newState.String())
}

func (h *testHost) Logger() logger.Logger { return logger.NullLogger{} }

func (h *testHost) SecurityPolicy() security.Policy { return security.DefaultPolicy() }

func addr(i int) packet.Addr { return packet.Addr{IP: "127.0.0.1", Port: 10000 + i} }

func TestSyncConvergesBothSidesToDirect(t *testing.T) {
	hostA := newTestHost()
	hostB := newTestHost()

	addrA, addrB := addr(1), addr(2)
	pAonB, _ := hostB.GetOrCreatePeer(addrA) // B's view of A
	pBonA, _ := hostA.GetOrCreatePeer(addrB) // A's view of B

	// A initiates.
	initial := packet.New(packet.SYNC)
	pBonA.Send(initial)

	// B receives A's SYNC.
	pAonB.Recv(initial)
	if pAonB.State() != Direct {
		t.Fatalf("B's view of A = %v, want DIRECT", pAonB.State())
	}
	reply := hostB.sent[addrA][0]
	if reply.Cmd != packet.SYNC || !reply.GetBool("response") {
		t.Fatalf("B's reply = %+v, want a SYNC with response=true", reply)
	}

	// A receives B's reply.
	pBonA.Recv(reply)
	if pBonA.State() != Direct {
		t.Fatalf("A's view of B = %v, want DIRECT", pBonA.State())
	}
}

func TestSyncRejectedWhenAlreadyDirect(t *testing.T) {
	host := newTestHost()
	p := New(host, addr(1), Direct)
	p.Recv(packet.New(packet.SYNC))
	if p.State() != Direct {
		t.Fatalf("state = %v, want unchanged DIRECT", p.State())
	}
	if len(host.sent[addr(1)]) != 0 {
		t.Fatalf("a redundant SYNC produced a reply, want none")
	}
}

func TestDesyncAcceptedFromAnyState(t *testing.T) {
	for _, st := range []State{NotConnected, Direct, Indirect, Arbitrating, Blocked, DirectLocal, IndirectRemote} {
		host := newTestHost()
		p := New(host, addr(1), st)
		p.Recv(packet.New(packet.DESYNC))
		if p.State() != NotConnected {
			t.Fatalf("from %v: state = %v, want NOT_CONNECTED", st, p.State())
		}
	}
}

func TestKeepAliveRespondsOnce(t *testing.T) {
	host := newTestHost()
	p := New(host, addr(1), Direct)
	p.Recv(packet.New(packet.KEEPALIVE))
	if len(host.sent[addr(1)]) != 1 {
		t.Fatalf("sent %d packets, want 1 reply", len(host.sent[addr(1)]))
	}
	reply := host.sent[addr(1)][0]
	if !reply.GetBool("response") {
		t.Fatalf("reply missing response=true")
	}

	// A reply itself (response=1) doesn't trigger another reply.
	p.Recv(reply)
	if len(host.sent[addr(1)]) != 1 {
		t.Fatalf("sent %d packets after a response echo, want still 1", len(host.sent[addr(1)]))
	}
}

func TestKeepAliveIgnoredOutsideDirect(t *testing.T) {
	host := newTestHost()
	p := New(host, addr(1), Indirect)
	p.Recv(packet.New(packet.KEEPALIVE))
	if len(host.sent[addr(1)]) != 0 {
		t.Fatalf("KEEPALIVE handled for an INDIRECT peer, want dropped")
	}
}

func TestDoKeepAliveTimerDropsStalePeer(t *testing.T) {
	host := newTestHost()
	p := New(host, addr(1), Direct)
	p.lastActivity = time.Now().Add(-KADrop - time.Second)
	p.DoKeepAliveTimer(time.Now())
	if p.State() != NotConnected {
		t.Fatalf("state = %v, want NOT_CONNECTED after exceeding KADrop", p.State())
	}
}

func TestDoKeepAliveTimerPingsWhenDue(t *testing.T) {
	host := newTestHost()
	p := New(host, addr(1), Direct)
	p.lastActivity = time.Now()
	p.lastSent = time.Now().Add(-KAInterval - time.Second)
	p.DoKeepAliveTimer(time.Now())
	if len(host.sent[addr(1)]) != 1 {
		t.Fatalf("sent %d packets, want 1 KEEPALIVE", len(host.sent[addr(1)]))
	}
}
