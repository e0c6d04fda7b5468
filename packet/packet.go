// Package packet implements the wire format shared by every node in the
// mesh: one command-tag byte followed by a bencoded attribute map. Decoding
// is permissive by design (see Decode) so a malformed or adversarial
// datagram never takes the process down.
package packet

import (
	"fmt"
	"net"
	"strconv"
)

// Cmd is the one-byte command tag that opens every datagram.
type Cmd byte

const (
	KEEPALIVE Cmd = iota
	SYNC
	DESYNC
	ARBITRATE
	PEERS
	HANDLERS
	DATA
	ROUTE
)

var cmdNames = map[Cmd]string{
	KEEPALIVE: "KEEPALIVE",
	SYNC:      "SYNC",
	DESYNC:    "DESYNC",
	ARBITRATE: "ARBITRATE",
	PEERS:     "PEERS",
	HANDLERS:  "HANDLERS",
	DATA:      "DATA",
	ROUTE:     "ROUTE",
}

// Valid reports whether c is one of the closed set of recognized commands.
func (c Cmd) Valid() bool {
	_, ok := cmdNames[c]
	return ok
}

func (c Cmd) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cmd(%d)", byte(c))
}

// Addr is a comparable stand-in for net.UDPAddr, suitable for use as a map
// key (host tables are keyed by peer address throughout this module).
type Addr struct {
	IP   string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// UDPAddr converts back to the net package's representation for socket I/O.
func (a Addr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(a.IP), Port: a.Port}
}

// AddrFromUDP normalizes a net.UDPAddr into the Addr used as map keys, so
// that "::ffff:127.0.0.1" and "127.0.0.1" style variance doesn't split one
// peer into two table entries.
func AddrFromUDP(u *net.UDPAddr) Addr {
	ip := u.IP
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return Addr{IP: ip.String(), Port: u.Port}
}

// Attrs is the self-describing attribute map carried by every Packet. Values
// are restricted to the subset bencode can represent: bool (stored as an
// int64 0/1), int64, string, []byte (stored as a string), []interface{},
// Addr (stored as a 2-element []interface{} of host, port), and nested
// Attrs.
type Attrs map[string]interface{}

// Packet is a decoded datagram: a command plus its attribute map.
type Packet struct {
	Cmd   Cmd
	Attrs Attrs
}

// New builds an empty packet for cmd, ready for its Set* calls.
func New(cmd Cmd) *Packet {
	return &Packet{Cmd: cmd, Attrs: Attrs{}}
}

// Has reports whether every named key is present in the packet's attributes.
func (p *Packet) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := p.Attrs[k]; !ok {
			return false
		}
	}
	return true
}

func (p *Packet) ensure() {
	if p.Attrs == nil {
		p.Attrs = Attrs{}
	}
}

// SetBool stores b as an int64 0/1, since bencode has no boolean type.
func (p *Packet) SetBool(key string, b bool) *Packet {
	p.ensure()
	if b {
		p.Attrs[key] = int64(1)
	} else {
		p.Attrs[key] = int64(0)
	}
	return p
}

// SetInt stores an integer attribute.
func (p *Packet) SetInt(key string, v int) *Packet {
	p.ensure()
	p.Attrs[key] = int64(v)
	return p
}

// SetString stores a string attribute.
func (p *Packet) SetString(key string, v string) *Packet {
	p.ensure()
	p.Attrs[key] = v
	return p
}

// SetBytes stores a raw byte payload (bencode strings are byte-transparent).
func (p *Packet) SetBytes(key string, v []byte) *Packet {
	p.ensure()
	p.Attrs[key] = string(v)
	return p
}

// SetAddr stores a host/port tuple as a 2-element list.
func (p *Packet) SetAddr(key string, a Addr) *Packet {
	p.ensure()
	p.Attrs[key] = []interface{}{a.IP, int64(a.Port)}
	return p
}

// SetAddrList stores a list of host/port tuples.
func (p *Packet) SetAddrList(key string, addrs []Addr) *Packet {
	p.ensure()
	out := make([]interface{}, len(addrs))
	for i, a := range addrs {
		out[i] = []interface{}{a.IP, int64(a.Port)}
	}
	p.Attrs[key] = out
	return p
}

// SetIntList stores a list of integers.
func (p *Packet) SetIntList(key string, vals []int) *Packet {
	p.ensure()
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	p.Attrs[key] = out
	return p
}

// SetStringList stores a list of strings.
func (p *Packet) SetStringList(key string, vals []string) *Packet {
	p.ensure()
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	p.Attrs[key] = out
	return p
}

// GetBool is tolerant of the int64/int/bool shapes an attribute may arrive
// in, depending on whether the packet was just constructed locally or
// round-tripped through Decode.
func (p *Packet) GetBool(key string) bool {
	switch v := p.Attrs[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func (p *Packet) GetInt(key string) (int, bool) {
	switch v := p.Attrs[key].(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func (p *Packet) GetString(key string) (string, bool) {
	v, ok := p.Attrs[key].(string)
	return v, ok
}

func (p *Packet) GetBytes(key string) ([]byte, bool) {
	v, ok := p.Attrs[key].(string)
	if !ok {
		return nil, false
	}
	return []byte(v), true
}

// GetAddr decodes a host/port tuple previously written by SetAddr.
func (p *Packet) GetAddr(key string) (Addr, bool) {
	raw, ok := p.Attrs[key]
	if !ok {
		return Addr{}, false
	}
	return decodeAddr(raw)
}

func decodeAddr(raw interface{}) (Addr, bool) {
	list, ok := raw.([]interface{})
	if !ok || len(list) != 2 {
		return Addr{}, false
	}
	ip, ok := list[0].(string)
	if !ok {
		return Addr{}, false
	}
	var port int
	switch v := list[1].(type) {
	case int64:
		port = int(v)
	case int:
		port = v
	default:
		return Addr{}, false
	}
	return Addr{IP: ip, Port: port}, true
}

// GetAddrList decodes a list of host/port tuples previously written by
// SetAddrList. Entries that don't decode cleanly are skipped rather than
// failing the whole list, consistent with the permissive-decode design.
func (p *Packet) GetAddrList(key string) ([]Addr, bool) {
	raw, ok := p.Attrs[key].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]Addr, 0, len(raw))
	for _, item := range raw {
		if a, ok := decodeAddr(item); ok {
			out = append(out, a)
		}
	}
	return out, true
}

func (p *Packet) GetIntList(key string) ([]int, bool) {
	raw, ok := p.Attrs[key].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case int64:
			out = append(out, int(v))
		case int:
			out = append(out, v)
		}
	}
	return out, true
}

func (p *Packet) GetStringList(key string) ([]string, bool) {
	raw, ok := p.Attrs[key].([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
