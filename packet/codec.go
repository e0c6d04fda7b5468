package packet

import (
	"bytes"
	"fmt"

	bencode "github.com/jackpal/bencode-go"

	"drizzle/logger"
)

// Encode serializes p as a single command byte followed by its bencoded
// attribute map, ready to hand to a UDP socket.
func Encode(p *Packet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(p.Cmd))
	attrs := p.Attrs
	if attrs == nil {
		attrs = Attrs{}
	}
	if err := bencode.Marshal(&buf, map[string]interface{}(attrs)); err != nil {
		return nil, fmt.Errorf("packet: encode attrs: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode never fails. An empty datagram is recovered as a bare KEEPALIVE
// with empty attributes. A tag outside the closed command set is replaced by
// KEEPALIVE, and the attribute blob is still decoded. An attribute blob that
// isn't well-formed bencode is replaced by empty attributes, and the command
// byte is kept. The log records each anomaly so the caller doesn't need to.
func Decode(b []byte, log logger.Logger) *Packet {
	if len(b) == 0 {
		log.Warnf("packet: empty datagram, defaulting to KEEPALIVE")
		return &Packet{Cmd: KEEPALIVE, Attrs: Attrs{}}
	}
	cmd := Cmd(b[0])
	if !cmd.Valid() {
		log.Warnf("packet: unrecognized command tag %d, defaulting to KEEPALIVE", b[0])
		cmd = KEEPALIVE
	}
	attrs := Attrs{}
	if len(b) > 1 {
		var decoded map[string]interface{}
		if err := bencode.Unmarshal(bytes.NewReader(b[1:]), &decoded); err != nil {
			log.Warnf("packet: malformed attribute blob from %d-byte datagram (%v); using empty attrs", len(b), err)
		} else {
			attrs = Attrs(decoded)
		}
	}
	return &Packet{Cmd: cmd, Attrs: attrs}
}
