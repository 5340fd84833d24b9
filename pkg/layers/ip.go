package layers

import (
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// IPv4 flag bits (in the flags/fragment-offset word).
const (
	IPFlagMF uint16 = 0x2000
	IPFlagDF uint16 = 0x4000
)

// IPv4 option types used by the option helpers.
const (
	IPOptionEND uint16 = 0
	IPOptionNOP uint16 = 1
)

const ipMinHeaderSize = 20

// IP is an IPv4 header. IHL, total length and the header checksum are
// recomputed on serialization; the protocol field resolves from the
// child's tag unless pinned with SetProtocol.
type IP struct {
	pdu.Base
	TOS        uint8
	ID         uint16
	TTL        uint8
	SrcAddr    netip.Addr
	DstAddr    netip.Addr
	Options    pdu.Options
	fragOffset uint16 // 13 bits, 8-byte units
	flags      uint16 // DF/MF bits of the flags word
	totalLen   uint16 // as parsed; recomputed on write

	protocol      uint8
	protoOverride bool

	wireChecksum uint16
	checksumOK   bool
}

// NewIP builds an IPv4 header with the conventional defaults (TTL 64).
func NewIP(src, dst netip.Addr) *IP {
	return &IP{TTL: 64, SrcAddr: src, DstAddr: dst}
}

// ParseIP dissects an IPv4 header, validates the IHL invariants, and
// parses the payload through the IP-protocol table. Fragments keep
// their payload as Raw so the reassembler can stitch them.
func ParseIP(data []byte) (*IP, error) {
	if len(data) < ipMinHeaderSize {
		return nil, fmt.Errorf("%w: ipv4 header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	ip := &IP{}
	vihl, _ := in.ReadU8()
	if vihl>>4 != 4 {
		return nil, fmt.Errorf("%w: ipv4 version %d", pdu.ErrMalformed, vihl>>4)
	}
	ihl := int(vihl&0x0F) * 4
	if ihl < ipMinHeaderSize || ihl > len(data) {
		return nil, fmt.Errorf("%w: ipv4 ihl %d", pdu.ErrMalformed, ihl)
	}
	ip.TOS, _ = in.ReadU8()
	ip.totalLen, _ = in.ReadU16()
	if int(ip.totalLen) < ihl {
		return nil, fmt.Errorf("%w: ipv4 total length %d below header", pdu.ErrMalformed, ip.totalLen)
	}
	ip.ID, _ = in.ReadU16()
	fw, _ := in.ReadU16()
	ip.flags = fw & 0xE000
	ip.fragOffset = fw & 0x1FFF
	ip.TTL, _ = in.ReadU8()
	ip.protocol, _ = in.ReadU8()
	ip.wireChecksum, _ = in.ReadU16()
	b, _ := in.ReadBytes(4)
	ip.SrcAddr = netip.AddrFrom4([4]byte(b))
	b, _ = in.ReadBytes(4)
	ip.DstAddr = netip.AddrFrom4([4]byte(b))

	if err := ip.parseOptions(data[ipMinHeaderSize:ihl]); err != nil {
		return nil, err
	}
	ip.checksumOK = checksum.Verify(data[:ihl])

	payload := data[ihl:]
	if int(ip.totalLen) >= ihl && int(ip.totalLen)-ihl < len(payload) {
		payload = payload[:int(ip.totalLen)-ihl]
	}
	if ip.IsFragment() {
		if len(payload) > 0 {
			pdu.Adopt(ip, pdu.NewRaw(payload))
		}
	} else {
		pdu.Adopt(ip, pdu.InnerFromIPProto(ip.protocol, payload))
	}
	return ip, nil
}

func (ip *IP) parseOptions(data []byte) error {
	in := stream.NewInput(data)
	for in.Remaining() > 0 {
		kind, _ := in.ReadU8()
		switch kind {
		case uint8(IPOptionEND):
			return nil
		case uint8(IPOptionNOP):
			ip.Options.Add(IPOptionNOP, nil)
		default:
			l, err := in.ReadU8()
			if err != nil || l < 2 || !in.CanRead(int(l)-2) {
				return fmt.Errorf("%w: ipv4 option %d", pdu.ErrMalformed, kind)
			}
			payload, _ := in.ReadBytes(int(l) - 2)
			ip.Options.Add(uint16(kind), payload)
		}
	}
	return nil
}

func (ip *IP) Type() pdu.Type { return pdu.TypeIP }

func (ip *IP) HeaderSize() int {
	return ipMinHeaderSize + pad4(ip.optionsWireSize())
}

func (ip *IP) optionsWireSize() int {
	n := 0
	for _, o := range ip.Options {
		if o.Kind == IPOptionNOP || o.Kind == IPOptionEND {
			n++
		} else {
			n += 2 + len(o.Data)
		}
	}
	return n
}

// Protocol returns the protocol field value that will be emitted.
func (ip *IP) Protocol() uint8 { return ip.protocol }

// SetProtocol pins the protocol field, disabling inference from the
// child's tag.
func (ip *IP) SetProtocol(p uint8) {
	ip.protocol = p
	ip.protoOverride = true
}

// FragmentOffset returns the offset in 8-byte units.
func (ip *IP) FragmentOffset() uint16 { return ip.fragOffset }

// SetFragmentOffset sets the offset in 8-byte units.
func (ip *IP) SetFragmentOffset(off uint16) { ip.fragOffset = off & 0x1FFF }

// MF reports the more-fragments bit.
func (ip *IP) MF() bool { return ip.flags&IPFlagMF != 0 }

// SetMF sets or clears the more-fragments bit.
func (ip *IP) SetMF(v bool) { ip.setFlag(IPFlagMF, v) }

// DF reports the don't-fragment bit.
func (ip *IP) DF() bool { return ip.flags&IPFlagDF != 0 }

// SetDF sets or clears the don't-fragment bit.
func (ip *IP) SetDF(v bool) { ip.setFlag(IPFlagDF, v) }

func (ip *IP) setFlag(bit uint16, v bool) {
	if v {
		ip.flags |= bit
	} else {
		ip.flags &^= bit
	}
}

// IsFragment reports whether this header describes a fragment (MF set
// or a non-zero offset).
func (ip *IP) IsFragment() bool { return ip.MF() || ip.fragOffset != 0 }

// TotalLen returns the total-length field as parsed (recomputed on
// serialization).
func (ip *IP) TotalLen() uint16 { return ip.totalLen }

// ChecksumOK reports whether the header checksum verified at parse
// time. Bad checksums are exposed, not rejected.
func (ip *IP) ChecksumOK() bool { return ip.checksumOK }

// WireChecksum returns the checksum field as parsed.
func (ip *IP) WireChecksum() uint16 { return ip.wireChecksum }

func (ip *IP) Clone() pdu.PDU {
	c := *ip
	c.Base = pdu.Base{}
	c.Options = ip.Options.Clone()
	pdu.Adopt(&c, ip.CloneChild())
	return &c
}

func (ip *IP) WriteHeader(buf []byte, total int) error {
	hdr := ip.HeaderSize()
	out := stream.NewOutput(buf[:hdr])
	out.WriteU8(4<<4 | uint8(hdr/4))
	out.WriteU8(ip.TOS)
	out.WriteU16(uint16(total))
	out.WriteU16(ip.ID)
	out.WriteU16(ip.flags | ip.fragOffset&0x1FFF)
	out.WriteU8(ip.TTL)
	out.WriteU8(ip.wireProtocol())
	out.WriteU16(0) // checksum, patched below
	s := ip.SrcAddr.As4()
	out.WriteBytes(s[:])
	d := ip.DstAddr.As4()
	if err := out.WriteBytes(d[:]); err != nil {
		return err
	}
	if err := ip.writeOptions(out); err != nil {
		return err
	}
	ck := checksum.Checksum(buf[:hdr])
	buf[10] = byte(ck >> 8)
	buf[11] = byte(ck)
	ip.wireChecksum = ck
	ip.totalLen = uint16(total)
	return nil
}

// MatchesResponse reports whether data is an IPv4 packet answering
// this one: addresses swapped (or our source was unset) and the inner
// layer matching.
func (ip *IP) MatchesResponse(data []byte) bool {
	if len(data) < ipMinHeaderSize || data[0]>>4 != 4 {
		return false
	}
	ihl := int(data[0]&0x0F) * 4
	if ihl < ipMinHeaderSize || ihl > len(data) {
		return false
	}
	src := netip.AddrFrom4([4]byte(data[12:16]))
	dst := netip.AddrFrom4([4]byte(data[16:20]))
	if src != ip.DstAddr {
		return false
	}
	unspec := netip.AddrFrom4([4]byte{})
	if ip.SrcAddr != unspec && dst != ip.SrcAddr {
		return false
	}
	c := ip.Child()
	if c == nil {
		return true
	}
	return c.MatchesResponse(data[ihl:])
}

func (ip *IP) wireProtocol() uint8 {
	if !ip.protoOverride {
		if c := ip.Child(); c != nil {
			if p, ok := pdu.IPProtoOf(c.Type()); ok {
				ip.protocol = p
			}
		}
	}
	return ip.protocol
}

func (ip *IP) writeOptions(out *stream.Output) error {
	for _, o := range ip.Options {
		switch o.Kind {
		case IPOptionNOP, IPOptionEND:
			if err := out.WriteU8(uint8(o.Kind)); err != nil {
				return err
			}
		default:
			if len(o.Data) > 253 {
				return fmt.Errorf("%w: ipv4 option %d too long", pdu.ErrSerialize, o.Kind)
			}
			out.WriteU8(uint8(o.Kind))
			out.WriteU8(uint8(2 + len(o.Data)))
			if err := out.WriteBytes(o.Data); err != nil {
				return err
			}
		}
	}
	// Pad the options area to the next 32-bit boundary with END.
	return out.Fill(out.Remaining(), uint8(IPOptionEND))
}

func pad4(n int) int { return (n + 3) &^ 3 }

func init() {
	pdu.RegisterEtherType(EtherTypeIP, pdu.TypeIP, func(b []byte) (pdu.PDU, error) { return ParseIP(b) })
	pdu.RegisterIPProto(IPProtoIPIP, pdu.TypeIP, func(b []byte) (pdu.PDU, error) { return ParseIP(b) })
}
