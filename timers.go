package drizzle

import (
	"time"

	"drizzle/packet"
	"drizzle/peer"
)

// timer is a simple fixed-interval callback, re-armed after it fires. The
// node's loop has exactly one suspension point (the bounded socket read),
// so timer resolution is never finer than the read timeout; tick is called
// once per loop iteration regardless of whether that iteration's read
// produced a packet or timed out.
type timer struct {
	interval time.Duration
	next     time.Time
	fn       func(time.Time)
}

func newTimer(interval time.Duration, fn func(time.Time)) *timer {
	return &timer{interval: interval, next: time.Now().Add(interval), fn: fn}
}

func (t *timer) tick(now time.Time) {
	if !now.Before(t.next) {
		t.fn(now)
		t.next = now.Add(t.interval)
	}
}

func (n *Node) setupTimers() {
	n.timers = []*timer{
		newTimer(n.cfg.PeerTimerTick, n.doPeerTimers),
		newTimer(n.cfg.ConnectInterval, n.doConnectionSweep),
	}
}

func (n *Node) runTimers(now time.Time) {
	for _, t := range n.timers {
		t.tick(now)
	}
}

// doPeerTimers runs the per-peer keep-alive and state-refresh timers over
// every known peer. Peers that Disconnect as a result are left in the
// table in NOT_CONNECTED, same as an explicit DESYNC; nothing prunes
// NOT_CONNECTED entries here, they simply stop generating traffic.
func (n *Node) doPeerTimers(now time.Time) {
	for _, p := range n.peers {
		p.DoKeepAliveTimer(now)
		p.DoStateRefreshTimer(now)
	}
}

// doConnectionSweep implements the periodic maintenance pass: self-address
// peers are pruned, and up to MaxArbitrations INDIRECT peers are handed to
// a DIRECT broker for arbitration.
func (n *Node) doConnectionSweep(now time.Time) {
	for addr := range n.selves {
		if _, ok := n.peers[addr]; ok {
			delete(n.peers, addr)
		}
	}

	var broker *peer.Peer
	for _, p := range n.peers {
		if p.State() == peer.Direct {
			broker = p
			break
		}
	}
	if broker == nil {
		n.log.Warnf("connection sweep: no DIRECT peer available to act as broker; skipping arbitration this round")
		return
	}

	issued := 0
	for _, p := range n.peers {
		if issued >= n.cfg.MaxArbitrations {
			n.log.Warnf("connection sweep: reached MAX_ARBITRATIONS (%d); remaining INDIRECT peers wait for next sweep", n.cfg.MaxArbitrations)
			return
		}
		if p.State() != peer.Indirect {
			continue
		}
		req := packet.New(packet.ARBITRATE)
		req.SetAddr("remote", p.Addr)
		broker.Send(req)
		p.SetState(peer.Arbitrating)
		issued++
	}
}
