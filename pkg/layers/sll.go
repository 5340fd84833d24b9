package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	sllHeaderSize  = 16
	sll2HeaderSize = 20
)

// SLL is the Linux cooked capture v1 header (DLT 113).
type SLL struct {
	pdu.Base
	PacketType uint16
	LLAddrType uint16 // ARPHRD_* value
	LLAddrLen  uint16
	LLAddr     pdu.HWAddress8

	protocol     uint16
	typeOverride bool
}

// NewSLL builds a cooked header.
func NewSLL() *SLL { return &SLL{LLAddrType: 1, LLAddrLen: 6} }

// ParseSLL dissects a cooked v1 frame, dispatching the payload on the
// protocol field through the Ethertype table.
func ParseSLL(data []byte) (*SLL, error) {
	if len(data) < sllHeaderSize {
		return nil, fmt.Errorf("%w: sll header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	s := &SLL{}
	s.PacketType, _ = in.ReadU16()
	s.LLAddrType, _ = in.ReadU16()
	s.LLAddrLen, _ = in.ReadU16()
	b, _ := in.ReadBytes(8)
	copy(s.LLAddr[:], b)
	s.protocol, _ = in.ReadU16()
	pdu.Adopt(s, pdu.InnerFromEtherType(s.protocol, in.Peek()))
	return s, nil
}

func (s *SLL) Type() pdu.Type  { return pdu.TypeSLL }
func (s *SLL) HeaderSize() int { return sllHeaderSize }

// Protocol returns the payload Ethertype.
func (s *SLL) Protocol() uint16 { return s.protocol }

// SetProtocol pins the payload Ethertype.
func (s *SLL) SetProtocol(p uint16) {
	s.protocol = p
	s.typeOverride = true
}

func (s *SLL) Clone() pdu.PDU {
	c := *s
	c.Base = pdu.Base{}
	pdu.Adopt(&c, s.CloneChild())
	return &c
}

func (s *SLL) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:sllHeaderSize])
	out.WriteU16(s.PacketType)
	out.WriteU16(s.LLAddrType)
	out.WriteU16(s.LLAddrLen)
	out.WriteBytes(s.LLAddr[:])
	if !s.typeOverride {
		if c := s.Child(); c != nil {
			if et, ok := pdu.EtherTypeOf(c.Type()); ok {
				s.protocol = et
			}
		}
	}
	return out.WriteU16(s.protocol)
}

// SLL2 is the Linux cooked capture v2 header (DLT 276).
type SLL2 struct {
	pdu.Base
	Reserved   uint16
	IfIndex    uint32
	LLAddrType uint16
	PacketType uint8
	LLAddrLen  uint8
	LLAddr     pdu.HWAddress8

	protocol     uint16
	typeOverride bool
}

// NewSLL2 builds a cooked v2 header.
func NewSLL2() *SLL2 { return &SLL2{LLAddrType: 1, LLAddrLen: 6} }

// ParseSLL2 dissects a cooked v2 frame.
func ParseSLL2(data []byte) (*SLL2, error) {
	if len(data) < sll2HeaderSize {
		return nil, fmt.Errorf("%w: sll2 header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	s := &SLL2{}
	s.protocol, _ = in.ReadU16()
	s.Reserved, _ = in.ReadU16()
	s.IfIndex, _ = in.ReadU32()
	s.LLAddrType, _ = in.ReadU16()
	s.PacketType, _ = in.ReadU8()
	s.LLAddrLen, _ = in.ReadU8()
	b, _ := in.ReadBytes(8)
	copy(s.LLAddr[:], b)
	pdu.Adopt(s, pdu.InnerFromEtherType(s.protocol, in.Peek()))
	return s, nil
}

func (s *SLL2) Type() pdu.Type  { return pdu.TypeSLL2 }
func (s *SLL2) HeaderSize() int { return sll2HeaderSize }

// Protocol returns the payload Ethertype.
func (s *SLL2) Protocol() uint16 { return s.protocol }

// SetProtocol pins the payload Ethertype.
func (s *SLL2) SetProtocol(p uint16) {
	s.protocol = p
	s.typeOverride = true
}

func (s *SLL2) Clone() pdu.PDU {
	c := *s
	c.Base = pdu.Base{}
	pdu.Adopt(&c, s.CloneChild())
	return &c
}

func (s *SLL2) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:sll2HeaderSize])
	if !s.typeOverride {
		if c := s.Child(); c != nil {
			if et, ok := pdu.EtherTypeOf(c.Type()); ok {
				s.protocol = et
			}
		}
	}
	out.WriteU16(s.protocol)
	out.WriteU16(s.Reserved)
	out.WriteU32(s.IfIndex)
	out.WriteU16(s.LLAddrType)
	out.WriteU8(s.PacketType)
	out.WriteU8(s.LLAddrLen)
	return out.WriteBytes(s.LLAddr[:])
}

func init() {
	pdu.RegisterLinkType(DLTSLL, func(b []byte) (pdu.PDU, error) { return ParseSLL(b) })
	pdu.RegisterLinkType(DLTSLL2, func(b []byte) (pdu.PDU, error) { return ParseSLL2(b) })
}
