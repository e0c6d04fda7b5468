package peer

import (
	"time"

	"drizzle/packet"
)

// Timing constants: how often a direct peer is pinged, how long without any
// inbound activity before it's considered dead, and how often the
// handler/peer tables are refreshed.
const (
	KAInterval  = 5 * time.Second
	KADrop      = 30 * time.Second
	StateUpdate = 30 * time.Second
)

// DoKeepAliveTimer is called once per timer tick for every peer. It drops
// the connection if nothing has been heard from the peer in KADrop, and
// otherwise sends a fresh KEEPALIVE if one hasn't gone out in KAInterval.
// A no-op outside DIRECT/DIRECT_LOCAL.
func (p *Peer) DoKeepAliveTimer(now time.Time) {
	if p.state != Direct && p.state != DirectLocal {
		return
	}
	if now.Sub(p.lastActivity) > KADrop {
		p.host.Logger().Infof("%v: no activity in %s, disconnecting", p.Addr, KADrop)
		p.Disconnect()
		return
	}
	if now.Sub(p.lastSent) > KAInterval {
		p.Send(packet.New(packet.KEEPALIVE))
	}
}

// DoStateRefreshTimer sends the peer a HANDLERS/PEERS query pair (via
// UpdateState) once per StateUpdate interval. A no-op outside DIRECT/DIRECT_LOCAL.
func (p *Peer) DoStateRefreshTimer(now time.Time) {
	if p.state != Direct && p.state != DirectLocal {
		return
	}
	if now.Sub(p.lastRefresh) > StateUpdate {
		p.UpdateState()
	}
}
