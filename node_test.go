package drizzle

import (
	"net"
	"testing"
	"time"

	"drizzle/logger"
	"drizzle/packet"
	"drizzle/peer"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := NewConfig()
	cfg.Port = 0 // let the OS pick a free port
	n, err := NewNode(cfg, logger.NullLogger{})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	t.Cleanup(n.Stop)
	return n
}

// TestTwoNodeSyncConverges drives the SYNC handshake end to end over real
// loopback sockets: A calls SyncTo(B), and after the loop has a chance to
// process both legs of the exchange, each side has the other in DIRECT.
func TestTwoNodeSyncConverges(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	go a.Run()
	go b.Run()

	a.SyncTo(b.LocalAddr())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pa, okA := a.GetPeer(b.LocalAddr())
		pb, okB := b.GetPeer(a.LocalAddr())
		if okA && okB && pa.State() == peer.Direct && pb.State() == peer.Direct {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("nodes did not converge to DIRECT within the deadline")
}

// TestDesyncAllDisconnectsDirectPeers exercises the graceful-shutdown path:
// after DesyncAll, a previously DIRECT peer transitions to NOT_CONNECTED.
func TestDesyncAllDisconnectsDirectPeers(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	go a.Run()
	go b.Run()

	a.SyncTo(b.LocalAddr())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pa, ok := a.GetPeer(b.LocalAddr())
		if ok && pa.State() == peer.Direct {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	a.DesyncAll()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pb, ok := b.GetPeer(a.LocalAddr())
		if ok && pb.State() == peer.NotConnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer did not observe DESYNC within the deadline")
}

// TestSyncWithLocalFlagReachesDirectLocal sends a real SYNC{local=1} datagram
// over loopback and checks the receiving side lands in DIRECT_LOCAL rather
// than DIRECT, exercising the classification through the actual socket read
// and dispatch path rather than calling the peer command handler directly.
func TestSyncWithLocalFlagReachesDirectLocal(t *testing.T) {
	a := newTestNode(t)
	go a.Run()

	conn, err := net.DialUDP("udp", nil, a.LocalAddr().UDPAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pkt := packet.New(packet.SYNC)
	pkt.SetBool("local", true)
	b, err := packet.Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}

	remote := packet.AddrFromUDP(conn.LocalAddr().(*net.UDPAddr))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, ok := a.GetPeer(remote)
		if ok && p.State() == peer.DirectLocal {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("peer did not reach DIRECT_LOCAL within the deadline")
}

func TestParsePeerSpec(t *testing.T) {
	addr, err := ParsePeerSpec("127.0.0.1:9652")
	if err != nil {
		t.Fatalf("ParsePeerSpec: %v", err)
	}
	if addr.Port != 9652 {
		t.Fatalf("port = %d, want 9652", addr.Port)
	}
}

func TestParsePeerSpecRejectsGarbage(t *testing.T) {
	if _, err := ParsePeerSpec("not-an-address"); err == nil {
		t.Fatalf("expected an error for a malformed peer spec")
	}
}
