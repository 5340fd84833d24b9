package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// PPPoE codes.
const (
	PPPoECodeSession uint8 = 0x00
	PPPoECodePADI    uint8 = 0x09
	PPPoECodePADO    uint8 = 0x07
	PPPoECodePADR    uint8 = 0x19
	PPPoECodePADS    uint8 = 0x65
	PPPoECodePADT    uint8 = 0xA7
)

// PPPoE tag types.
const (
	PPPoETagEndOfList   uint16 = 0x0000
	PPPoETagServiceName uint16 = 0x0101
	PPPoETagACName      uint16 = 0x0102
	PPPoETagHostUniq    uint16 = 0x0103
	PPPoETagACCookie    uint16 = 0x0104
)

const pppoeHeaderSize = 6

// PPPoE is a PPPoE discovery or session header. Discovery payloads
// decode into tags; session payloads stay raw (PPP). The length field
// is recomputed on serialization.
type PPPoE struct {
	pdu.Base
	Version   uint8 // 4 bits
	PPPType   uint8 // 4 bits
	Code      uint8
	SessionID uint16
	Tags      pdu.Options
}

// NewPPPoE builds a version-1 type-1 header with the given code.
func NewPPPoE(code uint8) *PPPoE {
	return &PPPoE{Version: 1, PPPType: 1, Code: code}
}

// ParsePPPoE dissects a PPPoE header.
func ParsePPPoE(data []byte) (*PPPoE, error) {
	if len(data) < pppoeHeaderSize {
		return nil, fmt.Errorf("%w: pppoe header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	p := &PPPoE{}
	vt, _ := in.ReadU8()
	p.Version = vt >> 4
	p.PPPType = vt & 0x0F
	p.Code, _ = in.ReadU8()
	p.SessionID, _ = in.ReadU16()
	length, _ := in.ReadU16()
	if !in.CanRead(int(length)) {
		return nil, fmt.Errorf("%w: pppoe length %d", pdu.ErrMalformed, length)
	}
	payload, _ := in.ReadBytes(int(length))
	if p.Code == PPPoECodeSession {
		if len(payload) > 0 {
			pdu.Adopt(p, pdu.NewRaw(payload))
		}
		return p, nil
	}
	tags := stream.NewInput(payload)
	for tags.Remaining() > 0 {
		tt, _ := tags.ReadU16()
		tl, err := tags.ReadU16()
		if err != nil || !tags.CanRead(int(tl)) {
			return nil, fmt.Errorf("%w: pppoe tag 0x%04x", pdu.ErrMalformed, tt)
		}
		v, _ := tags.ReadBytes(int(tl))
		p.Tags.Add(tt, v)
		if tt == PPPoETagEndOfList {
			break
		}
	}
	return p, nil
}

func (p *PPPoE) Type() pdu.Type { return pdu.TypePPPoE }

func (p *PPPoE) HeaderSize() int {
	n := pppoeHeaderSize
	for _, t := range p.Tags {
		n += 4 + len(t.Data)
	}
	return n
}

func (p *PPPoE) Clone() pdu.PDU {
	c := *p
	c.Base = pdu.Base{}
	c.Tags = p.Tags.Clone()
	pdu.Adopt(&c, p.CloneChild())
	return &c
}

func (p *PPPoE) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:p.HeaderSize()])
	out.WriteU8(p.Version<<4 | p.PPPType&0x0F)
	out.WriteU8(p.Code)
	out.WriteU16(p.SessionID)
	if err := out.WriteU16(uint16(total - pppoeHeaderSize)); err != nil {
		return err
	}
	for _, t := range p.Tags {
		out.WriteU16(t.Kind)
		out.WriteU16(uint16(len(t.Data)))
		if err := out.WriteBytes(t.Data); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	pdu.RegisterEtherType(EtherTypePPPoED, pdu.TypePPPoE, func(b []byte) (pdu.PDU, error) { return ParsePPPoE(b) })
	pdu.RegisterEtherType(EtherTypePPPoES, pdu.TypePPPoE, func(b []byte) (pdu.PDU, error) { return ParsePPPoE(b) })
}
