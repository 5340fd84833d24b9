package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const mplsHeaderSize = 4

// MPLS is one MPLS label-stack entry. A cleared bottom-of-stack bit
// chains to another MPLS entry; at the bottom the payload version
// nibble selects IPv4 or IPv6, falling back to Raw.
type MPLS struct {
	pdu.Base
	Label         uint32 // 20 bits
	TrafficClass  uint8  // 3 bits
	BottomOfStack bool
	TTL           uint8
}

// NewMPLS builds a bottom-of-stack entry for the given label.
func NewMPLS(label uint32) *MPLS {
	return &MPLS{Label: label & 0x000FFFFF, BottomOfStack: true, TTL: 64}
}

// ParseMPLS dissects a label-stack entry and its payload.
func ParseMPLS(data []byte) (*MPLS, error) {
	if len(data) < mplsHeaderSize {
		return nil, fmt.Errorf("%w: mpls entry", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	m := &MPLS{}
	w, _ := in.ReadU32()
	m.Label = w >> 12
	m.TrafficClass = uint8(w>>9) & 0x07
	m.BottomOfStack = w&0x100 != 0
	m.TTL = uint8(w)
	rest := in.Peek()
	switch {
	case len(rest) == 0:
	case !m.BottomOfStack:
		if inner, err := ParseMPLS(rest); err == nil {
			pdu.Adopt(m, inner)
		} else {
			pdu.Adopt(m, pdu.NewRaw(rest))
		}
	case rest[0]>>4 == 4:
		if inner, err := ParseIP(rest); err == nil {
			pdu.Adopt(m, inner)
		} else {
			pdu.Adopt(m, pdu.NewRaw(rest))
		}
	case rest[0]>>4 == 6:
		if inner, err := ParseIPv6(rest); err == nil {
			pdu.Adopt(m, inner)
		} else {
			pdu.Adopt(m, pdu.NewRaw(rest))
		}
	default:
		pdu.Adopt(m, pdu.NewRaw(rest))
	}
	return m, nil
}

func (m *MPLS) Type() pdu.Type  { return pdu.TypeMPLS }
func (m *MPLS) HeaderSize() int { return mplsHeaderSize }

func (m *MPLS) Clone() pdu.PDU {
	c := *m
	c.Base = pdu.Base{}
	pdu.Adopt(&c, m.CloneChild())
	return &c
}

func (m *MPLS) WriteHeader(buf []byte, total int) error {
	// The bottom-of-stack bit follows the child: another MPLS entry
	// below means this one is not the bottom.
	bottom := m.BottomOfStack
	if c := m.Child(); c != nil {
		bottom = c.Type() != pdu.TypeMPLS
	}
	m.BottomOfStack = bottom
	w := m.Label<<12 | uint32(m.TrafficClass&0x07)<<9 | uint32(m.TTL)
	if bottom {
		w |= 0x100
	}
	out := stream.NewOutput(buf[:mplsHeaderSize])
	return out.WriteU32(w)
}

func init() {
	pdu.RegisterEtherType(EtherTypeMPLS, pdu.TypeMPLS, func(b []byte) (pdu.PDU, error) { return ParseMPLS(b) })
}
