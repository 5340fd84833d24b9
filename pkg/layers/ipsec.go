package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// IPSecAH is an IPsec authentication header. The payload length field
// is in 32-bit words minus 2; the ICV fills the space after the fixed
// fields.
type IPSecAH struct {
	pdu.Base
	NextHeader uint8
	SPI        uint32
	Seq        uint32
	ICV        []byte
}

// ParseIPSecAH dissects an AH header and dispatches the payload on the
// next-header field.
func ParseIPSecAH(data []byte) (*IPSecAH, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: ah header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	a := &IPSecAH{}
	a.NextHeader, _ = in.ReadU8()
	l, _ := in.ReadU8()
	in.Skip(2) // reserved
	size := (int(l) + 2) * 4
	if size < 12 || size > len(data) {
		return nil, fmt.Errorf("%w: ah length %d", pdu.ErrMalformed, l)
	}
	a.SPI, _ = in.ReadU32()
	a.Seq, _ = in.ReadU32()
	icv, _ := in.ReadBytes(size - 12)
	a.ICV = append([]byte{}, icv...)
	pdu.Adopt(a, pdu.InnerFromIPProto(a.NextHeader, data[size:]))
	return a, nil
}

func (a *IPSecAH) Type() pdu.Type  { return pdu.TypeUserDefined }
func (a *IPSecAH) HeaderSize() int { return 12 + len(a.ICV) }

func (a *IPSecAH) Clone() pdu.PDU {
	c := *a
	c.Base = pdu.Base{}
	c.ICV = append([]byte{}, a.ICV...)
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *IPSecAH) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:a.HeaderSize()])
	nh := a.NextHeader
	if c := a.Child(); c != nil {
		if p, ok := pdu.IPProtoOf(c.Type()); ok {
			nh = p
		}
	}
	a.NextHeader = nh
	out.WriteU8(nh)
	out.WriteU8(uint8(a.HeaderSize()/4 - 2))
	out.WriteU16(0)
	out.WriteU32(a.SPI)
	out.WriteU32(a.Seq)
	return out.WriteBytes(a.ICV)
}

// IPSecESP is an IPsec ESP header. Everything after the SPI and
// sequence number is ciphertext and stays raw.
type IPSecESP struct {
	pdu.Base
	SPI uint32
	Seq uint32
}

// ParseIPSecESP dissects an ESP header.
func ParseIPSecESP(data []byte) (*IPSecESP, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: esp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	e := &IPSecESP{}
	e.SPI, _ = in.ReadU32()
	e.Seq, _ = in.ReadU32()
	if in.Remaining() > 0 {
		pdu.Adopt(e, pdu.NewRaw(in.Peek()))
	}
	return e, nil
}

func (e *IPSecESP) Type() pdu.Type  { return pdu.TypeUserDefined }
func (e *IPSecESP) HeaderSize() int { return 8 }

func (e *IPSecESP) Clone() pdu.PDU {
	c := *e
	c.Base = pdu.Base{}
	pdu.Adopt(&c, e.CloneChild())
	return &c
}

func (e *IPSecESP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:8])
	out.WriteU32(e.SPI)
	return out.WriteU32(e.Seq)
}

func init() {
	pdu.RegisterIPProto(IPProtoAH, pdu.TypeUserDefined, func(b []byte) (pdu.PDU, error) { return ParseIPSecAH(b) })
	pdu.RegisterIPProto(IPProtoESP, pdu.TypeUserDefined, func(b []byte) (pdu.PDU, error) { return ParseIPSecESP(b) })
}
