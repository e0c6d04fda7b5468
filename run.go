package drizzle

import (
	"net"
	"time"

	"drizzle/packet"
	"drizzle/peer"
)

// maxConsecutiveIOErrors bounds how many non-timeout socket errors in a row
// the loop tolerates before giving up; a single transient error (e.g. an
// ICMP port-unreachable surfacing as a write error on a future read) should
// not be fatal.
const maxConsecutiveIOErrors = 16

// Run starts the node's single-threaded event loop: it blocks until Stop is
// called or the socket fails persistently. The loop's only suspension point
// is the bounded socket read; every timer is evaluated once per iteration,
// whether that iteration's read produced a packet or timed out.
func (n *Node) Run() error {
	n.running.Store(true)
	defer n.running.Store(false)

	for {
		select {
		case <-n.stop:
			return nil
		default:
		}

		n.drainCommands()

		if err := n.conn.SetReadDeadline(time.Now().Add(n.cfg.Timeout)); err != nil {
			n.log.Errorf("set read deadline: %v", err)
		}

		nr, raddr, err := n.conn.ReadFromUDP(n.recvBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				n.ioErrors = 0
			} else {
				n.ioErrors++
				n.log.Errorf("socket read error (%d/%d consecutive): %v", n.ioErrors, maxConsecutiveIOErrors, err)
				if n.ioErrors >= maxConsecutiveIOErrors {
					n.log.Errorf("too many consecutive socket errors, stopping")
					return err
				}
			}
		} else {
			n.ioErrors = 0
			addr := packet.AddrFromUDP(raddr)
			pkt := packet.Decode(n.recvBuf[:nr], n.log)
			n.processPacket(addr, pkt)
		}

		n.runTimers(time.Now())
	}
}

// processPacket routes a decoded datagram to its peer, creating one if
// necessary, and drops it outright if that peer is BLOCKED.
func (n *Node) processPacket(addr packet.Addr, pkt *packet.Packet) {
	p, ok := n.GetOrCreatePeer(addr)
	if !ok {
		n.log.Debugf("dropping %v from %v: could not materialize a peer", pkt.Cmd, addr)
		return
	}
	if p.State() == peer.Blocked {
		n.log.Debugf("dropping %v from blocked peer %v", pkt.Cmd, addr)
		return
	}
	p.Recv(pkt)
}

// Stop signals the loop to exit after its current iteration. Safe to call
// from any goroutine, any number of times.
func (n *Node) Stop() {
	select {
	case <-n.stop:
	default:
		close(n.stop)
	}
}

// SyncTo creates (if needed) a peer at addr and sends it SYNC{you=addr},
// initiating a direct connection. Safe to call before Run, or from any
// goroutine afterwards.
func (n *Node) SyncTo(addr packet.Addr) {
	n.enqueue(func() {
		p, ok := n.GetOrCreatePeer(addr)
		if !ok {
			return
		}
		pkt := packet.New(packet.SYNC)
		pkt.SetAddr("you", addr)
		p.Send(pkt)
	})
}

// DesyncAll sends DESYNC to every currently DIRECT peer, without waiting
// for any acknowledgement. Intended for a graceful shutdown sequence,
// called before Stop.
func (n *Node) DesyncAll() {
	done := make(chan struct{})
	n.enqueue(func() {
		for _, p := range n.peers {
			if p.State() == peer.Direct {
				p.Disconnect()
			}
		}
		close(done)
	})
	<-done
}

// Block sets addr's state to BLOCKED, disallowing any further inbound
// processing from it until a fresh SYNC moves it back out of that state by
// way of Forget. Mirrors the operator "Block" action.
func (n *Node) Block(addr packet.Addr) {
	n.enqueue(func() {
		p, ok := n.GetOrCreatePeer(addr)
		if !ok {
			return
		}
		p.SetState(peer.Blocked)
	})
}

// Forget disconnects and removes addr from the peer table entirely, rather
// than merely marking it NOT_CONNECTED. The peer reappears, starting fresh
// from NOT_CONNECTED, if it sends traffic again. Mirrors the operator
// "Forget" action.
func (n *Node) Forget(addr packet.Addr) {
	n.enqueue(func() {
		p, ok := n.peers[addr]
		if !ok {
			return
		}
		if p.State() == peer.Direct || p.State() == peer.DirectLocal {
			p.Disconnect()
		}
		delete(n.peers, addr)
	})
}
