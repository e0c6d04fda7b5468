package peer

import (
	"github.com/golang/groupcache/lru"

	"drizzle/packet"
)

// MaxNeighbors bounds how many entries from a peer's PEERS advertisement we
// remember about them. A malicious or buggy peer that claims tens of
// thousands of neighbors shouldn't be able to grow one Peer's memory
// footprint without limit.
const MaxNeighbors = 256

// neighborCache remembers what a remote peer last told us about its own
// neighbor table (address -> advertised State), bounded by an LRU so a huge
// PEERS payload can only ever evict older entries, never grow unbounded.
// Backed by groupcache/lru, the usual choice for this kind of bounded,
// overwrite-on-refresh cache.
type neighborCache struct {
	cache *lru.Cache
}

func newNeighborCache() *neighborCache {
	return &neighborCache{cache: lru.New(MaxNeighbors)}
}

// absorb replaces the cache wholesale with the addresses and parallel state
// list from a PEERS response: a peer's neighbor advertisement describes its
// current table, not a delta to merge.
func (c *neighborCache) absorb(addrs []packet.Addr, states []State) {
	c.cache.Clear()
	n := len(addrs)
	if len(states) < n {
		n = len(states)
	}
	for i := 0; i < n; i++ {
		c.cache.Add(addrs[i], states[i])
	}
}

func (c *neighborCache) get(addr packet.Addr) (State, bool) {
	v, ok := c.cache.Get(addr)
	if !ok {
		return NotConnected, false
	}
	return v.(State), true
}
