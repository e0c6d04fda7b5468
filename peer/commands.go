package peer

import "drizzle/packet"

// cmdKeepAlive answers an unanswered KEEPALIVE with one carrying response=1.
// Both directions of a keep-alive exchange count as activity, which Recv
// already records before dispatch runs.
func cmdKeepAlive(p *Peer, pkt *packet.Packet) {
	if pkt.Has("response") {
		return
	}
	reply := packet.New(packet.KEEPALIVE)
	reply.SetBool("response", true)
	p.Send(reply)
}

// cmdSync implements both sides of the direct-connection handshake: the
// side initiating SYNC sends one without "response"; the side answering
// echoes it back with response=1 and its own view of "you" (the address the
// peer is now considered reachable at). Either leg moves the peer to DIRECT
// (or DIRECT_LOCAL, if the "local" flag is set, meaning the peer was
// reached via a LAN-local address and shouldn't be advertised to others).
func cmdSync(p *Peer, pkt *packet.Packet) {
	if pkt.Has("local") && pkt.GetBool("local") {
		p.SetState(DirectLocal)
	} else {
		p.SetState(Direct)
	}

	if you, ok := pkt.GetAddr("you"); ok {
		if !p.host.AddSelfAddress(you) {
			p.host.Logger().Errorf("(MAX_SELVES) too many recognized self addresses; refusing to add %v advertised by %v", you, p.Addr)
		}
	}

	if pkt.Has("response") {
		p.UpdateState()
		return
	}
	reply := packet.New(packet.SYNC)
	reply.SetBool("response", true)
	reply.SetAddr("you", p.Addr)
	p.Send(reply)
}

// cmdDesync unconditionally drops the peer to NOT_CONNECTED: a disconnect
// notice is accepted from any state, never refused.
func cmdDesync(p *Peer, pkt *packet.Packet) {
	p.SetState(NotConnected)
}

// cmdArbitrate implements every phase of the three-party hole-punch
// protocol. Which phase a given packet represents is determined by which
// attribute it carries, not by any explicit phase number: an initiator's
// request carries "remote", a broker's forward to the target carries
// "behalf", the target's ack carries "respond", and the broker's final
// report to the initiator carries "success"+"arbitrated".
func cmdArbitrate(p *Peer, pkt *packet.Packet) {
	host := p.host
	log := host.Logger()

	switch {
	case pkt.Has("remote"):
		// We are the broker (B); p is the initiator (I) asking us to
		// introduce them to "remote" (T).
		remoteAddr, _ := pkt.GetAddr("remote")
		target, ok := host.GetPeer(remoteAddr)
		if !ok || target == p || target.State() != Direct || host.Self(remoteAddr) {
			fail := packet.New(packet.ARBITRATE)
			fail.SetBool("success", false)
			fail.SetAddr("arbitrated", remoteAddr)
			p.Send(fail)
			return
		}
		forward := packet.New(packet.ARBITRATE)
		forward.SetAddr("behalf", p.Addr)
		target.Send(forward)

	case pkt.Has("behalf"):
		// We are the target (T); p is the broker (B) relaying I's
		// address on I's behalf.
		behalfAddr, _ := pkt.GetAddr("behalf")
		if existing, ok := host.GetPeer(behalfAddr); ok && existing.State() == Blocked {
			log.Infof("arbitrate: refusing to arbitrate with blocked peer %v", behalfAddr)
			return
		}
		iPeer, ok := host.NewPeerAt(behalfAddr, Arbitrating)
		if !ok {
			log.Errorf("arbitrate: could not create peer for %v, table full?", behalfAddr)
			return
		}
		// Punch our own NAT towards I so the eventual direct SYNC has
		// a mapping to land on.
		iPeer.Send(packet.New(packet.KEEPALIVE))

		ack := packet.New(packet.ARBITRATE)
		ack.SetAddr("respond", behalfAddr)
		p.Send(ack)

	case pkt.Has("respond"):
		// We are the broker (B) again; p is T acknowledging the
		// introduction. Report success back to I.
		respondAddr, _ := pkt.GetAddr("respond")
		iPeer, ok := host.GetPeer(respondAddr)
		if !ok {
			log.Warnf("arbitrate: no record of initiator %v to report success to", respondAddr)
			return
		}
		report := packet.New(packet.ARBITRATE)
		report.SetBool("success", true)
		report.SetAddr("arbitrated", p.Addr)
		iPeer.Send(report)

	case pkt.Has("success") && pkt.Has("arbitrated"):
		// We are the initiator (I); p is the broker (B) reporting the
		// outcome of the introduction.
		arbitratedAddr, _ := pkt.GetAddr("arbitrated")
		target, ok := host.GetPeer(arbitratedAddr)
		if !pkt.GetBool("success") {
			if ok {
				target.SetState(Indirect)
			}
			return
		}
		if !ok {
			log.Warnf("arbitrate: broker reported success for %v but we have no record of it", arbitratedAddr)
			return
		}
		sync := packet.New(packet.SYNC)
		sync.SetAddr("you", target.Addr)
		target.Send(sync)

	default:
		log.Warnf("arbitrate: packet from %v with no recognized phase attributes; ignoring", p.Addr)
	}
}

// cmdPeers both answers an unsolicited request (no "peers" attribute: reply
// with our own table) and absorbs an advertisement from the peer (a "peers"
// plus "states" pair). Absorbed neighbors that aren't one of our own
// addresses, and that we hold in NOT_CONNECTED or INDIRECT (including ones
// created just now), are recorded as INDIRECT (if the advertiser says it has
// them DIRECT) or INDIRECT_REMOTE (if it has them INDIRECT or DIRECT_LOCAL);
// any other advertised state leaves them unchanged, as does any state of
// ours other than those two.
func cmdPeers(p *Peer, pkt *packet.Packet) {
	host := p.host

	if pkt.Has("peers") && pkt.Has("states") {
		addrs, _ := pkt.GetAddrList("peers")
		rawStates, _ := pkt.GetIntList("states")
		states := make([]State, len(rawStates))
		for i, s := range rawStates {
			states[i] = State(s)
		}
		p.AbsorbNeighbors(addrs, states)

		n := len(addrs)
		if len(states) < n {
			n = len(states)
		}
		for i := 0; i < n; i++ {
			addr := addrs[i]
			if host.Self(addr) {
				continue
			}
			known, ok := host.GetOrCreatePeer(addr)
			if !ok {
				continue
			}
			cur := known.State()
			if cur != NotConnected && cur != Indirect {
				continue
			}
			switch states[i] {
			case Direct:
				known.SetState(Indirect)
			case Indirect, DirectLocal:
				known.SetState(IndirectRemote)
			}
		}
		return
	}

	addrs, states := host.PeerSnapshot()
	ints := make([]int, len(states))
	for i, s := range states {
		ints[i] = int(s)
	}
	reply := packet.New(packet.PEERS)
	reply.SetAddrList("peers", addrs)
	reply.SetIntList("states", ints)
	p.Send(reply)
}

// cmdHandlers mirrors cmdPeers's request/advertise split for the set of
// application handler names a peer supports.
func cmdHandlers(p *Peer, pkt *packet.Packet) {
	if pkt.Has("handlers") {
		names, _ := pkt.GetStringList("handlers")
		p.SetHandlers(names)
		return
	}
	reply := packet.New(packet.HANDLERS)
	reply.SetStringList("handlers", p.host.HandlerNames())
	p.Send(reply)
}

// cmdData hands the payload to the named application handler. An unknown
// handler name is dropped by Host.Dispatch, not treated as an error here.
func cmdData(p *Peer, pkt *packet.Packet) {
	name, _ := pkt.GetString("handler")
	p.host.Dispatch(name, p, pkt)
}

// cmdRoute implements best-effort, TTL-bounded forwarding. A destination
// matching one of our own addresses is delivered locally; otherwise we pick
// a next hop (preferring a DIRECT peer who themselves advertises dest as
// DIRECT) and forward with ttl-1, dropping silently if ttl would go
// negative or no next hop exists.
func cmdRoute(p *Peer, pkt *packet.Packet) {
	host := p.host
	log := host.Logger()

	ttl, ok := pkt.GetInt("ttl")
	if !ok || ttl < 0 {
		return
	}
	dest, ok := pkt.GetAddr("dest")
	if !ok {
		return
	}

	if host.Self(dest) {
		data, _ := pkt.GetBytes("data")
		src, _ := pkt.GetAddr("src")
		host.DeliverLocal(data, src)
		return
	}

	if ttl == 0 {
		log.Debugf("route: ttl exhausted before reaching %v; dropping", dest)
		return
	}

	nextAddr, ok := selectNextHop(host, dest)
	if !ok {
		log.Debugf("route: no reachable next hop for %v; dropping", dest)
		return
	}
	nextPeer, ok := host.GetPeer(nextAddr)
	if !ok {
		return
	}

	forward := packet.New(packet.ROUTE)
	forward.SetAddr("dest", dest)
	forward.SetInt("ttl", ttl-1)
	data, _ := pkt.GetBytes("data")
	forward.SetBytes("data", data)
	src, _ := pkt.GetAddr("src")
	forward.SetAddr("src", src)
	nextPeer.Send(forward)
}
