package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const dot1qHeaderSize = 4

// Dot1Q is an 802.1Q VLAN tag: PCP(3) DEI(1) VID(12) plus the inner
// Ethertype.
type Dot1Q struct {
	pdu.Base
	Priority uint8 // PCP, 3 bits
	DEI      bool
	VLANID   uint16 // 12 bits

	payloadType  uint16
	typeOverride bool
}

// NewDot1Q builds a tag for the given VLAN ID.
func NewDot1Q(vid uint16) *Dot1Q { return &Dot1Q{VLANID: vid & 0x0FFF} }

// ParseDot1Q dissects a VLAN tag and its payload.
func ParseDot1Q(data []byte) (*Dot1Q, error) {
	q := &Dot1Q{}
	if err := q.parse(data); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Dot1Q) parse(data []byte) error {
	in := stream.NewInput(data)
	tci, err := in.ReadU16()
	if err != nil {
		return fmt.Errorf("%w: 802.1q tag", pdu.ErrMalformed)
	}
	q.Priority = uint8(tci >> 13)
	q.DEI = tci&0x1000 != 0
	q.VLANID = tci & 0x0FFF
	if q.payloadType, err = in.ReadU16(); err != nil {
		return fmt.Errorf("%w: 802.1q tag", pdu.ErrMalformed)
	}
	pdu.Adopt(q, pdu.InnerFromEtherType(q.payloadType, in.Peek()))
	return nil
}

func (q *Dot1Q) Type() pdu.Type  { return pdu.TypeDot1Q }
func (q *Dot1Q) HeaderSize() int { return dot1qHeaderSize }

// PayloadType returns the inner Ethertype field.
func (q *Dot1Q) PayloadType() uint16 { return q.payloadType }

// SetPayloadType pins the inner Ethertype.
func (q *Dot1Q) SetPayloadType(et uint16) {
	q.payloadType = et
	q.typeOverride = true
}

func (q *Dot1Q) Clone() pdu.PDU {
	c := *q
	c.Base = pdu.Base{}
	pdu.Adopt(&c, q.CloneChild())
	return &c
}

func (q *Dot1Q) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:dot1qHeaderSize])
	tci := uint16(q.Priority&0x7)<<13 | q.VLANID&0x0FFF
	if q.DEI {
		tci |= 0x1000
	}
	if err := out.WriteU16(tci); err != nil {
		return err
	}
	if !q.typeOverride {
		if c := q.Child(); c != nil {
			if et, ok := pdu.EtherTypeOf(c.Type()); ok {
				q.payloadType = et
			}
		}
	}
	return out.WriteU16(q.payloadType)
}

// Dot1AD is an 802.1ad service tag (Q-in-Q outer tag, TPID 0x88a8).
// The tag body is identical to 802.1Q.
type Dot1AD struct {
	Dot1Q
}

// NewDot1AD builds a service tag for the given VLAN ID.
func NewDot1AD(vid uint16) *Dot1AD {
	ad := &Dot1AD{}
	ad.VLANID = vid & 0x0FFF
	return ad
}

// ParseDot1AD dissects a service tag and its payload.
func ParseDot1AD(data []byte) (*Dot1AD, error) {
	ad := &Dot1AD{}
	if err := ad.parse(data); err != nil {
		return nil, err
	}
	// Reparent the child onto the outer struct so parent walks see the
	// Dot1AD tag, not the embedded Dot1Q.
	if c := ad.Dot1Q.Child(); c != nil {
		pdu.Adopt(ad, c)
	}
	return ad, nil
}

func (ad *Dot1AD) Type() pdu.Type { return pdu.TypeDot1AD }

func (ad *Dot1AD) Clone() pdu.PDU {
	c := *ad
	c.Base = pdu.Base{}
	pdu.Adopt(&c, ad.CloneChild())
	return &c
}

func init() {
	pdu.RegisterEtherType(EtherTypeDot1Q, pdu.TypeDot1Q, func(b []byte) (pdu.PDU, error) { return ParseDot1Q(b) })
	pdu.RegisterEtherType(EtherTypeDot1AD, pdu.TypeDot1AD, func(b []byte) (pdu.PDU, error) { return ParseDot1AD(b) })
}
