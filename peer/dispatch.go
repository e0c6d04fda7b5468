package peer

import (
	"time"

	"drizzle/packet"
)

// commandSpec describes how one command is validated and handled: which
// states may receive it (nil accept means "any"), which attribute keys must
// be present, and the function that does the work. An explicit table beats
// constructing handler method names dynamically from the command tag.
type commandSpec struct {
	accept   func(State) bool
	required []string
	handle   func(p *Peer, pkt *packet.Packet)
}

func oneOf(states ...State) func(State) bool {
	return func(s State) bool {
		for _, want := range states {
			if s == want {
				return true
			}
		}
		return false
	}
}

func notOneOf(states ...State) func(State) bool {
	return func(s State) bool {
		for _, excl := range states {
			if s == excl {
				return false
			}
		}
		return true
	}
}

var dispatchTable = map[packet.Cmd]commandSpec{
	packet.KEEPALIVE: {
		accept: oneOf(Direct, DirectLocal),
		handle: cmdKeepAlive,
	},
	packet.SYNC: {
		// SYNC is how a peer not yet (or no longer) directly connected
		// establishes or re-establishes a direct link; it's rejected
		// once the link is already up to avoid clobbering state with a
		// stray retransmit.
		accept: notOneOf(Direct, DirectLocal),
		handle: cmdSync,
	},
	packet.DESYNC: {
		// Accepted unconditionally: a disconnect notice always wins.
		handle: cmdDesync,
	},
	packet.ARBITRATE: {
		accept: oneOf(Direct, DirectLocal),
		handle: cmdArbitrate,
	},
	packet.PEERS: {
		accept: oneOf(Direct, DirectLocal),
		handle: cmdPeers,
	},
	packet.HANDLERS: {
		accept: oneOf(Direct, DirectLocal),
		handle: cmdHandlers,
	},
	packet.DATA: {
		accept:   oneOf(Direct, DirectLocal),
		required: []string{"handler"},
		handle:   cmdData,
	},
	packet.ROUTE: {
		accept:   oneOf(Direct, DirectLocal),
		required: []string{"dest", "ttl", "data", "src"},
		handle:   cmdRoute,
	},
}

// Recv processes an inbound packet already addressed to this peer: updates
// the activity timestamp, validates the command against the peer's current
// state and the packet's attributes, and invokes its handler. Packets that
// fail validation are dropped with a warning, never causing a panic or a
// state change.
func (p *Peer) Recv(pkt *packet.Packet) {
	p.lastActivity = time.Now()

	spec, ok := dispatchTable[pkt.Cmd]
	if !ok {
		p.host.Logger().Warnf("%v: no dispatch entry for command %v from %v", p.Addr, pkt.Cmd, p.Addr)
		return
	}
	if spec.accept != nil && !spec.accept(p.state) {
		p.host.Logger().Warnf("%v packet from %v not valid in state %v; ignoring", pkt.Cmd, p.Addr, p.state)
		return
	}
	if len(spec.required) > 0 && !pkt.Has(spec.required...) {
		p.host.Logger().Warnf("%v packet from %v missing required attributes %v; ignoring", pkt.Cmd, p.Addr, spec.required)
		return
	}
	spec.handle(p, pkt)
}
