package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	vxlanHeaderSize = 8
	vxlanFlagVNI    = 0x08
)

// VXLAN is a VXLAN encapsulation header (RFC 7348). The inner PDU is
// always an Ethernet frame.
type VXLAN struct {
	pdu.Base
	VNIValid bool
	VNI      uint32 // 24 bits
}

// NewVXLAN builds a header with the given VNI and the VNI-valid flag
// set.
func NewVXLAN(vni uint32) *VXLAN {
	return &VXLAN{VNIValid: true, VNI: vni & 0x00FFFFFF}
}

// ParseVXLAN dissects the header and the inner Ethernet frame.
func ParseVXLAN(data []byte) (*VXLAN, error) {
	if len(data) < vxlanHeaderSize {
		return nil, fmt.Errorf("%w: vxlan header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	v := &VXLAN{}
	flags, _ := in.ReadU8()
	v.VNIValid = flags&vxlanFlagVNI != 0
	in.Skip(3) // reserved
	vni, _ := in.ReadU32()
	v.VNI = vni >> 8
	inner, err := ParseEthernetII(in.Peek())
	if err != nil {
		pdu.Adopt(v, pdu.NewRaw(in.Peek()))
	} else {
		pdu.Adopt(v, inner)
	}
	return v, nil
}

func (v *VXLAN) Type() pdu.Type  { return pdu.TypeVXLAN }
func (v *VXLAN) HeaderSize() int { return vxlanHeaderSize }

func (v *VXLAN) Clone() pdu.PDU {
	c := *v
	c.Base = pdu.Base{}
	pdu.Adopt(&c, v.CloneChild())
	return &c
}

func (v *VXLAN) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:vxlanHeaderSize])
	flags := uint8(0)
	if v.VNIValid {
		flags = vxlanFlagVNI
	}
	out.WriteU8(flags)
	out.Fill(3, 0)
	return out.WriteU32(v.VNI << 8)
}
