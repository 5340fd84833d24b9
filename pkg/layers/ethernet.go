package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// ethernetHeaderSize is dst(6) + src(6) + type(2). Frames shorter than
// 60 bytes are padded by the sender, not by this dissector.
const ethernetHeaderSize = 14

// EthernetII is the Ethernet II frame header.
type EthernetII struct {
	pdu.Base
	DstAddr pdu.HWAddress
	SrcAddr pdu.HWAddress

	payloadType  uint16
	typeOverride bool
}

// NewEthernetII builds a frame with the given addresses. The payload
// type resolves from the child's tag at serialize time unless
// SetPayloadType is called.
func NewEthernetII(dst, src pdu.HWAddress) *EthernetII {
	return &EthernetII{DstAddr: dst, SrcAddr: src}
}

// ParseEthernetII dissects a frame and recursively parses the payload
// through the Ethertype table.
func ParseEthernetII(data []byte) (*EthernetII, error) {
	in := stream.NewInput(data)
	e := &EthernetII{}
	dst, err := in.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: ethernet header", pdu.ErrMalformed)
	}
	copy(e.DstAddr[:], dst)
	src, _ := in.ReadBytes(6)
	copy(e.SrcAddr[:], src)
	if e.payloadType, err = in.ReadU16(); err != nil {
		return nil, fmt.Errorf("%w: ethernet header", pdu.ErrMalformed)
	}
	pdu.Adopt(e, pdu.InnerFromEtherType(e.payloadType, in.Peek()))
	return e, nil
}

func (e *EthernetII) Type() pdu.Type  { return pdu.TypeEthernetII }
func (e *EthernetII) HeaderSize() int { return ethernetHeaderSize }

// PayloadType returns the Ethertype field.
func (e *EthernetII) PayloadType() uint16 { return e.payloadType }

// SetPayloadType pins the Ethertype, disabling inference from the
// child's tag.
func (e *EthernetII) SetPayloadType(et uint16) {
	e.payloadType = et
	e.typeOverride = true
}

func (e *EthernetII) Clone() pdu.PDU {
	c := *e
	c.Base = pdu.Base{}
	pdu.Adopt(&c, e.CloneChild())
	return &c
}

func (e *EthernetII) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:ethernetHeaderSize])
	if err := out.WriteBytes(e.DstAddr[:]); err != nil {
		return err
	}
	out.WriteBytes(e.SrcAddr[:])
	return out.WriteU16(e.wireType())
}

// MatchesResponse delegates to the inner layer: a response frame
// addressed back to us (or broadcast-received) matches when its
// payload answers our payload.
func (e *EthernetII) MatchesResponse(data []byte) bool {
	if len(data) < ethernetHeaderSize {
		return false
	}
	c := e.Child()
	if c == nil {
		return false
	}
	return c.MatchesResponse(data[ethernetHeaderSize:])
}

func (e *EthernetII) wireType() uint16 {
	if !e.typeOverride {
		if c := e.Child(); c != nil {
			if et, ok := pdu.EtherTypeOf(c.Type()); ok {
				e.payloadType = et
			}
		}
	}
	return e.payloadType
}

func init() {
	pdu.RegisterLinkType(DLTEthernet, func(b []byte) (pdu.PDU, error) { return ParseEthernetII(b) })
}
