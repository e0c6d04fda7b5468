package drizzle

import (
	"time"

	"drizzle/security"
)

// MaxConnections and Security are carried as configuration even though
// neither is consulted by the core command handlers: the former is exposed
// for operators and application Handlers to read as a soft ceiling (it is
// declared but never enforced at this layer), and the latter is the policy
// object handlers can use to judge a peer's advertised algorithms without
// the core forcing a particular enforcement strategy on them.
const (
	DefaultPort            = 9652
	DefaultMaxPeers        = 4096
	DefaultMaxSelves       = 8
	DefaultMaxArbitrations = 25
	DefaultMaxConnections  = 256
	DefaultBufSize         = 65536
	DefaultTimeout         = time.Second
	DefaultConnectInterval = 10 * time.Second
	DefaultPeerTimerTick   = time.Second
)

// Config bundles every tunable a Node needs at construction time.
type Config struct {
	Port int

	// MaxPeers caps the size of the peer table (Invariant: never more
	// than MaxPeers entries).
	MaxPeers int
	// MaxSelves caps how many of our own addresses we'll remember, as
	// reported back to us by SYNC responses and arbitration.
	MaxSelves int
	// MaxArbitrations caps how many ARBITRATE requests one connection
	// sweep will issue.
	MaxArbitrations int
	// MaxConnections is a declared ceiling on simultaneous DIRECT peers;
	// see the comment on the constants above for why it isn't enforced here.
	MaxConnections int

	// BufSize is the size of each UDP receive buffer (effectively the
	// node's MTU ceiling for inbound datagrams).
	BufSize int
	// Timeout bounds each socket read; it's also the loop's only
	// suspension point, so it indirectly bounds how promptly timers
	// fire.
	Timeout time.Duration
	// ConnectInterval is how often the connection sweep runs.
	ConnectInterval time.Duration
	// PeerTimerTick is how often per-peer keep-alive/refresh timers are
	// evaluated.
	PeerTimerTick time.Duration

	Security security.Policy
}

// NewConfig returns a Config populated with this package's defaults.
func NewConfig() *Config {
	return &Config{
		Port:            DefaultPort,
		MaxPeers:        DefaultMaxPeers,
		MaxSelves:       DefaultMaxSelves,
		MaxArbitrations: DefaultMaxArbitrations,
		MaxConnections:  DefaultMaxConnections,
		BufSize:         DefaultBufSize,
		Timeout:         DefaultTimeout,
		ConnectInterval: DefaultConnectInterval,
		PeerTimerTick:   DefaultPeerTimerTick,
		Security:        security.DefaultPolicy(),
	}
}
