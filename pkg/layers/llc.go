package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// Well-known LLC SAP values.
const (
	LLCSapSTP  uint8 = 0x42
	LLCSapSNAP uint8 = 0xAA
)

// U-frame control values (P/F bit clear).
const (
	LLCControlUI    uint8 = 0x03
	LLCControlDM    uint8 = 0x0F
	LLCControlDISC  uint8 = 0x43
	LLCControlUA    uint8 = 0x63
	LLCControlSABME uint8 = 0x6F
	LLCControlFRMR  uint8 = 0x87
	LLCControlXID   uint8 = 0xAF
	LLCControlTEST  uint8 = 0xE3
)

// LLC is an 802.2 LLC header. The control field is one byte for
// U-frames (low two bits 11) and two bytes for I- and S-frames.
type LLC struct {
	pdu.Base
	DSAP    uint8
	SSAP    uint8
	Control uint16
	uFrame  bool
}

// NewLLC builds a U-frame UI header with the given SAPs.
func NewLLC(dsap, ssap uint8) *LLC {
	return &LLC{DSAP: dsap, SSAP: ssap, Control: uint16(LLCControlUI), uFrame: true}
}

// ParseLLC dissects an LLC header; SNAP and STP payloads are
// recognized by their SAP values.
func ParseLLC(data []byte) (*LLC, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: llc header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	l := &LLC{}
	l.DSAP, _ = in.ReadU8()
	l.SSAP, _ = in.ReadU8()
	c0, _ := in.ReadU8()
	if c0&0x03 == 0x03 {
		l.uFrame = true
		l.Control = uint16(c0)
	} else {
		c1, err := in.ReadU8()
		if err != nil {
			return nil, fmt.Errorf("%w: llc control", pdu.ErrMalformed)
		}
		l.Control = uint16(c0)<<8 | uint16(c1)
	}
	rest := in.Peek()
	switch {
	case len(rest) == 0:
	case l.DSAP == LLCSapSNAP && l.SSAP == LLCSapSNAP && l.uFrame:
		if snap, err := ParseSNAP(rest); err == nil {
			pdu.Adopt(l, snap)
		} else {
			pdu.Adopt(l, pdu.NewRaw(rest))
		}
	case l.DSAP == LLCSapSTP && l.SSAP == LLCSapSTP:
		if stp, err := ParseSTP(rest); err == nil {
			pdu.Adopt(l, stp)
		} else {
			pdu.Adopt(l, pdu.NewRaw(rest))
		}
	default:
		pdu.Adopt(l, pdu.NewRaw(rest))
	}
	return l, nil
}

func (l *LLC) Type() pdu.Type { return pdu.TypeLLC }

func (l *LLC) HeaderSize() int {
	if l.uFrame {
		return 3
	}
	return 4
}

// UFrame reports whether the control field is the one-byte unnumbered
// form.
func (l *LLC) UFrame() bool { return l.uFrame }

// Modifier returns the U-frame control value with the P/F bit masked.
func (l *LLC) Modifier() (uint8, error) {
	if !l.uFrame {
		return 0, fmt.Errorf("%w: not a u-frame", pdu.ErrLogic)
	}
	return uint8(l.Control) &^ 0x10, nil
}

// SetModifier stores a U-frame control value.
func (l *LLC) SetModifier(m uint8) {
	l.uFrame = true
	l.Control = uint16(m)
}

func (l *LLC) Clone() pdu.PDU {
	c := *l
	c.Base = pdu.Base{}
	pdu.Adopt(&c, l.CloneChild())
	return &c
}

func (l *LLC) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:l.HeaderSize()])
	out.WriteU8(l.DSAP)
	out.WriteU8(l.SSAP)
	if l.uFrame {
		return out.WriteU8(uint8(l.Control))
	}
	return out.WriteU16(l.Control)
}

// SNAP is an 802.2 SNAP extension: OUI plus protocol type. A zero OUI
// dispatches the payload through the Ethertype table.
type SNAP struct {
	pdu.Base
	OUI [3]byte

	protocol     uint16
	typeOverride bool
}

// NewSNAP builds a zero-OUI SNAP header.
func NewSNAP() *SNAP { return &SNAP{} }

// ParseSNAP dissects a SNAP header and its payload.
func ParseSNAP(data []byte) (*SNAP, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: snap header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	s := &SNAP{}
	b, _ := in.ReadBytes(3)
	copy(s.OUI[:], b)
	s.protocol, _ = in.ReadU16()
	if s.OUI == [3]byte{} {
		pdu.Adopt(s, pdu.InnerFromEtherType(s.protocol, in.Peek()))
	} else if in.Remaining() > 0 {
		pdu.Adopt(s, pdu.NewRaw(in.Peek()))
	}
	return s, nil
}

func (s *SNAP) Type() pdu.Type  { return pdu.TypeSNAP }
func (s *SNAP) HeaderSize() int { return 5 }

// Protocol returns the protocol type field.
func (s *SNAP) Protocol() uint16 { return s.protocol }

// SetProtocol pins the protocol type.
func (s *SNAP) SetProtocol(p uint16) {
	s.protocol = p
	s.typeOverride = true
}

func (s *SNAP) Clone() pdu.PDU {
	c := *s
	c.Base = pdu.Base{}
	pdu.Adopt(&c, s.CloneChild())
	return &c
}

func (s *SNAP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:5])
	if err := out.WriteBytes(s.OUI[:]); err != nil {
		return err
	}
	if !s.typeOverride && s.OUI == [3]byte{} {
		if c := s.Child(); c != nil {
			if et, ok := pdu.EtherTypeOf(c.Type()); ok {
				s.protocol = et
			}
		}
	}
	return out.WriteU16(s.protocol)
}
