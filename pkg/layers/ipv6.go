package layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// IPv6 extension header protocol numbers.
const (
	IPv6ExtHopByHop uint8 = 0
	IPv6ExtRouting  uint8 = 43
	IPv6ExtFragment uint8 = 44
	IPv6ExtAH       uint8 = 51
	IPv6ExtDestOpts uint8 = 60
	IPv6ExtMobility uint8 = 135
)

const (
	ipv6HeaderSize = 40
	// ipv6JumboOption is the Hop-by-Hop jumbo payload option type.
	ipv6JumboOption uint8 = 0xC2
)

// IPv6ExtHeader is one extension header: its protocol number and the
// body after the common next-header/length bytes. The next-header
// chaining is recomputed on serialization.
type IPv6ExtHeader struct {
	Kind uint8
	Data []byte
}

func (e IPv6ExtHeader) wireSize() int {
	if e.Kind == IPv6ExtAH {
		return pad4(2 + len(e.Data))
	}
	return pad8(2 + len(e.Data))
}

// IPv6 is an IPv6 header plus its extension-header chain. The payload
// length and the next-header chaining are recomputed on serialization.
type IPv6 struct {
	pdu.Base
	TrafficClass uint8
	FlowLabel    uint32 // 20 bits
	HopLimit     uint8
	SrcAddr      netip.Addr
	DstAddr      netip.Addr
	ExtHeaders   []IPv6ExtHeader

	nextHeader uint8 // final payload protocol as parsed or pinned
	nhOverride bool
	payloadLen uint16
}

// NewIPv6 builds a header with the conventional defaults (hop limit
// 64).
func NewIPv6(src, dst netip.Addr) *IPv6 {
	return &IPv6{HopLimit: 64, SrcAddr: src, DstAddr: dst, nextHeader: IPProtoNoNext}
}

// ParseIPv6 dissects the fixed header, iterates the extension chain
// until a payload protocol or NO_NEXT_HEADER, and parses the payload
// through the IP-protocol table.
func ParseIPv6(data []byte) (*IPv6, error) {
	if len(data) < ipv6HeaderSize {
		return nil, fmt.Errorf("%w: ipv6 header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	ip := &IPv6{}
	w, _ := in.ReadU32()
	if w>>28 != 6 {
		return nil, fmt.Errorf("%w: ipv6 version %d", pdu.ErrMalformed, w>>28)
	}
	ip.TrafficClass = uint8(w >> 20)
	ip.FlowLabel = w & 0x000FFFFF
	ip.payloadLen, _ = in.ReadU16()
	nh, _ := in.ReadU8()
	ip.HopLimit, _ = in.ReadU8()
	b, _ := in.ReadBytes(16)
	ip.SrcAddr = netip.AddrFrom16([16]byte(b))
	b, _ = in.ReadBytes(16)
	ip.DstAddr = netip.AddrFrom16([16]byte(b))

	payloadLen := int(ip.payloadLen)
	for isIPv6ExtHeader(nh) {
		next, err := in.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("%w: ipv6 extension %d", pdu.ErrMalformed, nh)
		}
		l, err := in.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("%w: ipv6 extension %d", pdu.ErrMalformed, nh)
		}
		size := int(l)*8 + 8
		if nh == IPv6ExtAH {
			size = (int(l) + 2) * 4
		}
		body, err := in.ReadBytes(size - 2)
		if err != nil {
			return nil, fmt.Errorf("%w: ipv6 extension %d", pdu.ErrMalformed, nh)
		}
		ip.ExtHeaders = append(ip.ExtHeaders, IPv6ExtHeader{Kind: nh, Data: body})
		// A jumbo payload option overrides a zero payload-length field.
		if nh == IPv6ExtHopByHop && ip.payloadLen == 0 {
			if jumbo, ok := findJumboLength(body); ok {
				payloadLen = jumbo
			}
		}
		nh = next
	}
	ip.nextHeader = nh

	rest := in.Peek()
	if consumed := in.Pos() - ipv6HeaderSize; payloadLen > consumed && payloadLen-consumed < len(rest) {
		rest = rest[:payloadLen-consumed]
	}
	if nh != IPProtoNoNext {
		pdu.Adopt(ip, pdu.InnerFromIPProto(nh, rest))
	} else if len(rest) > 0 {
		pdu.Adopt(ip, pdu.NewRaw(rest))
	}
	return ip, nil
}

func isIPv6ExtHeader(nh uint8) bool {
	switch nh {
	case IPv6ExtHopByHop, IPv6ExtRouting, IPv6ExtFragment, IPv6ExtAH, IPv6ExtDestOpts, IPv6ExtMobility:
		return true
	}
	return false
}

// findJumboLength scans a Hop-by-Hop option body for the jumbo payload
// option and returns its 32-bit length.
func findJumboLength(body []byte) (int, bool) {
	in := stream.NewInput(body)
	for in.Remaining() > 0 {
		t, _ := in.ReadU8()
		if t == 0 { // Pad1
			continue
		}
		l, err := in.ReadU8()
		if err != nil || !in.CanRead(int(l)) {
			return 0, false
		}
		v, _ := in.ReadBytes(int(l))
		if t == ipv6JumboOption && l == 4 {
			return int(binary.BigEndian.Uint32(v)), true
		}
	}
	return 0, false
}

func (ip *IPv6) Type() pdu.Type { return pdu.TypeIPv6 }

func (ip *IPv6) HeaderSize() int {
	n := ipv6HeaderSize
	for _, e := range ip.ExtHeaders {
		n += e.wireSize()
	}
	return n
}

// NextHeader returns the final payload protocol number.
func (ip *IPv6) NextHeader() uint8 { return ip.nextHeader }

// SetNextHeader pins the final payload protocol, disabling inference
// from the child's tag.
func (ip *IPv6) SetNextHeader(nh uint8) {
	ip.nextHeader = nh
	ip.nhOverride = true
}

// PayloadLen returns the payload-length field as parsed or last
// written.
func (ip *IPv6) PayloadLen() uint16 { return ip.payloadLen }

// AddExtHeader appends an extension header to the chain.
func (ip *IPv6) AddExtHeader(kind uint8, body []byte) {
	ip.ExtHeaders = append(ip.ExtHeaders, IPv6ExtHeader{Kind: kind, Data: body})
}

func (ip *IPv6) Clone() pdu.PDU {
	c := *ip
	c.Base = pdu.Base{}
	c.ExtHeaders = make([]IPv6ExtHeader, len(ip.ExtHeaders))
	for i, e := range ip.ExtHeaders {
		d := make([]byte, len(e.Data))
		copy(d, e.Data)
		c.ExtHeaders[i] = IPv6ExtHeader{Kind: e.Kind, Data: d}
	}
	pdu.Adopt(&c, ip.CloneChild())
	return &c
}

func (ip *IPv6) WriteHeader(buf []byte, total int) error {
	hdr := ip.HeaderSize()
	out := stream.NewOutput(buf[:hdr])
	out.WriteU32(uint32(6)<<28 | uint32(ip.TrafficClass)<<20 | ip.FlowLabel&0x000FFFFF)
	out.WriteU16(uint16(total - ipv6HeaderSize))
	out.WriteU8(ip.firstHeader())
	out.WriteU8(ip.HopLimit)
	s := ip.SrcAddr.As16()
	out.WriteBytes(s[:])
	d := ip.DstAddr.As16()
	if err := out.WriteBytes(d[:]); err != nil {
		return err
	}
	// Each extension's next-header points at the following extension;
	// the last one carries the payload protocol.
	for i, e := range ip.ExtHeaders {
		next := ip.payloadProtocol()
		if i+1 < len(ip.ExtHeaders) {
			next = ip.ExtHeaders[i+1].Kind
		}
		out.WriteU8(next)
		size := e.wireSize()
		if e.Kind == IPv6ExtAH {
			out.WriteU8(uint8(size/4 - 2))
		} else {
			out.WriteU8(uint8(size/8 - 1))
		}
		if err := out.WriteBytes(e.Data); err != nil {
			return err
		}
		if rem := size - 2 - len(e.Data); rem > 0 {
			if err := out.Fill(rem, 0); err != nil {
				return err
			}
		}
	}
	ip.payloadLen = uint16(total - ipv6HeaderSize)
	return nil
}

// firstHeader is what the fixed header's next-header field carries:
// the first extension, or the payload protocol.
func (ip *IPv6) firstHeader() uint8 {
	if len(ip.ExtHeaders) > 0 {
		return ip.ExtHeaders[0].Kind
	}
	return ip.payloadProtocol()
}

func (ip *IPv6) payloadProtocol() uint8 {
	if !ip.nhOverride {
		if c := ip.Child(); c != nil {
			if p, ok := pdu.IPProtoOf(c.Type()); ok {
				ip.nextHeader = p
			}
		} else if !ip.nhOverride && ip.nextHeader == 0 {
			ip.nextHeader = IPProtoNoNext
		}
	}
	return ip.nextHeader
}

func pad8(n int) int { return (n + 7) &^ 7 }

func init() {
	pdu.RegisterEtherType(EtherTypeIPv6, pdu.TypeIPv6, func(b []byte) (pdu.PDU, error) { return ParseIPv6(b) })
	pdu.RegisterIPProto(IPProtoIPv6, pdu.TypeIPv6, func(b []byte) (pdu.PDU, error) { return ParseIPv6(b) })
}
