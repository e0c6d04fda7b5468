package peer

import (
	"drizzle/packet"
	"drizzle/routing"
)

// selectNextHop adapts the node's peer table into routing.Candidate values
// and defers the actual choice to the routing package, which knows nothing
// about Peer or Host.
func selectNextHop(host Host, dest packet.Addr) (packet.Addr, bool) {
	peers := host.Peers()
	candidates := make([]routing.Candidate, 0, len(peers))
	for _, pr := range peers {
		st := pr.State()
		candidates = append(candidates, routing.Candidate{
			Addr:   pr.Addr,
			Direct: st == Direct || st == DirectLocal,
			Lookup: pr,
		})
	}
	return routing.SelectNextHop(dest, candidates)
}
