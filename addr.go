package drizzle

import (
	"net"

	"github.com/pkg/errors"

	"drizzle/packet"
)

// ParsePeerSpec resolves a "host:port" peer spec, as accepted on the
// command line and by the admin HTTP endpoint's /sync, into a packet.Addr
// normalized the same way AddrFromUDP normalizes addresses read off the
// socket, so a resolved peer spec and an inbound datagram from the same
// peer produce the same map key.
func ParsePeerSpec(spec string) (packet.Addr, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", spec)
	if err != nil {
		return packet.Addr{}, errors.Wrapf(err, "invalid peer spec %q", spec)
	}
	return packet.AddrFromUDP(udpAddr), nil
}
