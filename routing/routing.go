// Package routing implements best-effort next-hop selection for ROUTE
// forwarding. It has no notion of Peer or Node: callers hand it a flat list
// of candidates, keeping this package free of any dependency on peer state
// machinery.
package routing

import (
	"math/rand"

	"drizzle/packet"
)

// NeighborLookup answers whether a candidate's own advertised neighbor set
// lists dest as a DIRECT peer. *peer.Peer satisfies this structurally.
type NeighborLookup interface {
	DirectNeighbor(dest packet.Addr) bool
}

// Candidate is one routable next hop.
type Candidate struct {
	Addr   packet.Addr
	Direct bool
	Lookup NeighborLookup
}

// SelectNextHop picks where to forward a packet bound for dest, given the
// known candidates: prefer a DIRECT peer who themselves advertises dest as a
// DIRECT neighbor, otherwise fall back to an arbitrary candidate, otherwise
// report no route. Forwarding is advisory, not authoritative: a chosen hop
// may still drop the packet if its own view is stale.
func SelectNextHop(dest packet.Addr, candidates []Candidate) (packet.Addr, bool) {
	for _, c := range candidates {
		if c.Direct && c.Lookup != nil && c.Lookup.DirectNeighbor(dest) {
			return c.Addr, true
		}
	}
	if len(candidates) == 0 {
		return packet.Addr{}, false
	}
	return candidates[rand.Intn(len(candidates))].Addr, true
}
