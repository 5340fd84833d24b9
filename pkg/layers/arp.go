package layers

import (
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// ARP opcodes.
const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

const arpHeaderSize = 28

// ARP is an Ethernet/IPv4 ARP packet (hardware type 1, protocol type
// 0x0800).
type ARP struct {
	pdu.Base
	HWType    uint16
	ProtoType uint16
	HWLen     uint8
	ProtoLen  uint8
	Opcode    uint16
	SenderHW  pdu.HWAddress
	SenderIP  netip.Addr
	TargetHW  pdu.HWAddress
	TargetIP  netip.Addr
}

// NewARP builds an ARP packet with the Ethernet/IPv4 constants filled
// in and a zero opcode.
func NewARP() *ARP {
	return &ARP{
		HWType:    1,
		ProtoType: EtherTypeIP,
		HWLen:     6,
		ProtoLen:  4,
		SenderIP:  netip.AddrFrom4([4]byte{}),
		TargetIP:  netip.AddrFrom4([4]byte{}),
	}
}

// NewARPRequest builds a who-has request for targetIP.
func NewARPRequest(senderHW pdu.HWAddress, senderIP, targetIP netip.Addr) *ARP {
	a := NewARP()
	a.Opcode = ARPRequest
	a.SenderHW = senderHW
	a.SenderIP = senderIP
	a.TargetIP = targetIP
	return a
}

// NewARPReply builds an is-at reply.
func NewARPReply(senderHW, targetHW pdu.HWAddress, senderIP, targetIP netip.Addr) *ARP {
	a := NewARP()
	a.Opcode = ARPReply
	a.SenderHW = senderHW
	a.SenderIP = senderIP
	a.TargetHW = targetHW
	a.TargetIP = targetIP
	return a
}

// ParseARP dissects an ARP packet. Trailing bytes (frame padding)
// become a Raw child.
func ParseARP(data []byte) (*ARP, error) {
	if len(data) < arpHeaderSize {
		return nil, fmt.Errorf("%w: arp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	a := &ARP{}
	a.HWType, _ = in.ReadU16()
	a.ProtoType, _ = in.ReadU16()
	a.HWLen, _ = in.ReadU8()
	a.ProtoLen, _ = in.ReadU8()
	a.Opcode, _ = in.ReadU16()
	b, _ := in.ReadBytes(6)
	copy(a.SenderHW[:], b)
	ip, _ := in.ReadBytes(4)
	a.SenderIP = netip.AddrFrom4([4]byte(ip))
	b, _ = in.ReadBytes(6)
	copy(a.TargetHW[:], b)
	ip, _ = in.ReadBytes(4)
	a.TargetIP = netip.AddrFrom4([4]byte(ip))
	if in.Remaining() > 0 {
		pdu.Adopt(a, pdu.NewRaw(in.Peek()))
	}
	return a, nil
}

func (a *ARP) Type() pdu.Type  { return pdu.TypeARP }
func (a *ARP) HeaderSize() int { return arpHeaderSize }

func (a *ARP) Clone() pdu.PDU {
	c := *a
	c.Base = pdu.Base{}
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *ARP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:arpHeaderSize])
	out.WriteU16(a.HWType)
	out.WriteU16(a.ProtoType)
	out.WriteU8(a.HWLen)
	out.WriteU8(a.ProtoLen)
	out.WriteU16(a.Opcode)
	out.WriteBytes(a.SenderHW[:])
	sip := a.SenderIP.As4()
	out.WriteBytes(sip[:])
	out.WriteBytes(a.TargetHW[:])
	tip := a.TargetIP.As4()
	return out.WriteBytes(tip[:])
}

// MatchesResponse reports whether data decodes as an ARP reply
// answering this request: opcode REPLY with sender/target IPs swapped.
func (a *ARP) MatchesResponse(data []byte) bool {
	r, err := ParseARP(data)
	if err != nil {
		return false
	}
	return r.Opcode == ARPReply && r.SenderIP == a.TargetIP && r.TargetIP == a.SenderIP
}

func init() {
	pdu.RegisterEtherType(EtherTypeARP, pdu.TypeARP, func(b []byte) (pdu.PDU, error) { return ParseARP(b) })
}
