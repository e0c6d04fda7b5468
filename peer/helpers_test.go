package peer

import "drizzle/packet"

func packetPeersRequest() *packet.Packet {
	return packet.New(packet.PEERS)
}

func packetPeersAdvertise(addrs []packet.Addr, states []State) *packet.Packet {
	p := packet.New(packet.PEERS)
	ints := make([]int, len(states))
	for i, s := range states {
		ints[i] = int(s)
	}
	p.SetAddrList("peers", addrs)
	p.SetIntList("states", ints)
	return p
}

func packetHandlersRequest() *packet.Packet {
	return packet.New(packet.HANDLERS)
}

func packetData(handler string) *packet.Packet {
	p := packet.New(packet.DATA)
	p.SetString("handler", handler)
	return p
}

func packetRoute(dest, src packet.Addr, ttl int, data []byte) *packet.Packet {
	p := packet.New(packet.ROUTE)
	p.SetAddr("dest", dest)
	p.SetAddr("src", src)
	p.SetInt("ttl", ttl)
	p.SetBytes("data", data)
	return p
}
