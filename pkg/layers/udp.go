package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const udpHeaderSize = 8

// UDP is a UDP datagram header. Length and checksum are recomputed on
// serialization. Over IPv4 a zero checksum is legal and is emitted
// when there is no enclosing IP layer; over IPv6 the checksum is
// always computed.
type UDP struct {
	pdu.Base
	SrcPort uint16
	DstPort uint16

	wireLength   uint16
	wireChecksum uint16
}

// NewUDP builds a datagram header with the given ports.
func NewUDP(sport, dport uint16) *UDP {
	return &UDP{SrcPort: sport, DstPort: dport}
}

// ParseUDP dissects a UDP header; the remainder is the payload.
func ParseUDP(data []byte) (*UDP, error) {
	if len(data) < udpHeaderSize {
		return nil, fmt.Errorf("%w: udp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	u := &UDP{}
	u.SrcPort, _ = in.ReadU16()
	u.DstPort, _ = in.ReadU16()
	u.wireLength, _ = in.ReadU16()
	u.wireChecksum, _ = in.ReadU16()
	if in.Remaining() > 0 {
		pdu.Adopt(u, pdu.NewRaw(in.Peek()))
	}
	return u, nil
}

func (u *UDP) Type() pdu.Type  { return pdu.TypeUDP }
func (u *UDP) HeaderSize() int { return udpHeaderSize }

// Length returns the length field as parsed or last written.
func (u *UDP) Length() uint16 { return u.wireLength }

// WireChecksum returns the checksum field as parsed or last written.
func (u *UDP) WireChecksum() uint16 { return u.wireChecksum }

func (u *UDP) Clone() pdu.PDU {
	c := *u
	c.Base = pdu.Base{}
	pdu.Adopt(&c, u.CloneChild())
	return &c
}

func (u *UDP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:udpHeaderSize])
	out.WriteU16(u.SrcPort)
	out.WriteU16(u.DstPort)
	out.WriteU16(uint16(total))
	if err := out.WriteU16(0); err != nil {
		return err
	}
	u.wireLength = uint16(total)
	ck := uint16(0)
	if acc, ok := pseudoHeaderSum(u, IPProtoUDP, total); ok {
		ck = checksum.Fold(checksum.Sum(buf[:total], acc))
		// An all-zero UDP checksum means "not computed"; RFC 768 maps
		// a computed zero to 0xFFFF.
		if ck == 0 {
			ck = 0xFFFF
		}
	}
	buf[6] = byte(ck >> 8)
	buf[7] = byte(ck)
	u.wireChecksum = ck
	return nil
}

// MatchesResponse reports whether data decodes as a datagram with the
// ports swapped.
func (u *UDP) MatchesResponse(data []byte) bool {
	r, err := ParseUDP(data)
	if err != nil {
		return false
	}
	return r.SrcPort == u.DstPort && r.DstPort == u.SrcPort
}

func init() {
	pdu.RegisterIPProto(IPProtoUDP, pdu.TypeUDP, func(b []byte) (pdu.PDU, error) { return ParseUDP(b) })
}
