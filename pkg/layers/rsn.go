package layers

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// Cipher and AKM suite selectors (OUI 00-0F-AC, last byte is the suite
// type).
const (
	RSNCipherWEP40  uint32 = 0x000FAC01
	RSNCipherTKIP   uint32 = 0x000FAC02
	RSNCipherCCMP   uint32 = 0x000FAC04
	RSNCipherWEP104 uint32 = 0x000FAC05
	RSNAkmPMKSA     uint32 = 0x000FAC01 // 802.1X
	RSNAkmPSK       uint32 = 0x000FAC02
)

// RSNInformation is the decoded RSN information element body (the
// payload of tag 48): version, group cipher, pairwise cipher list, AKM
// list and the capabilities word.
type RSNInformation struct {
	Version      uint16
	GroupCipher  uint32
	Pairwise     []uint32
	AKMs         []uint32
	Capabilities uint16
}

// NewRSNInformation builds the common WPA2-PSK element (CCMP group and
// pairwise cipher, PSK key management).
func NewRSNInformation() *RSNInformation {
	return &RSNInformation{
		Version:     1,
		GroupCipher: RSNCipherCCMP,
		Pairwise:    []uint32{RSNCipherCCMP},
		AKMs:        []uint32{RSNAkmPSK},
	}
}

// ParseRSNInformation decodes an RSN element body. Counts and version
// are little-endian; suite selectors are stored big-endian on the
// wire.
func ParseRSNInformation(data []byte) (*RSNInformation, error) {
	in := stream.NewInput(data)
	r := &RSNInformation{}
	var err error
	if r.Version, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: rsn element", pdu.ErrMalformed)
	}
	if r.GroupCipher, err = in.ReadU32(); err != nil {
		return nil, fmt.Errorf("%w: rsn group cipher", pdu.ErrMalformed)
	}
	pairwiseCount, err := in.ReadU16LE()
	if err != nil {
		return nil, fmt.Errorf("%w: rsn pairwise count", pdu.ErrMalformed)
	}
	for i := 0; i < int(pairwiseCount); i++ {
		s, err := in.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("%w: rsn pairwise list", pdu.ErrMalformed)
		}
		r.Pairwise = append(r.Pairwise, s)
	}
	akmCount, err := in.ReadU16LE()
	if err != nil {
		return nil, fmt.Errorf("%w: rsn akm count", pdu.ErrMalformed)
	}
	for i := 0; i < int(akmCount); i++ {
		s, err := in.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("%w: rsn akm list", pdu.ErrMalformed)
		}
		r.AKMs = append(r.AKMs, s)
	}
	if r.Capabilities, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: rsn capabilities", pdu.ErrMalformed)
	}
	return r, nil
}

func (r *RSNInformation) encode() []byte {
	out := make([]byte, 0, 8+4*(len(r.Pairwise)+len(r.AKMs)))
	out = binary.LittleEndian.AppendUint16(out, r.Version)
	out = binary.BigEndian.AppendUint32(out, r.GroupCipher)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(r.Pairwise)))
	for _, s := range r.Pairwise {
		out = binary.BigEndian.AppendUint32(out, s)
	}
	out = binary.LittleEndian.AppendUint16(out, uint16(len(r.AKMs)))
	for _, s := range r.AKMs {
		out = binary.BigEndian.AppendUint32(out, s)
	}
	return binary.LittleEndian.AppendUint16(out, r.Capabilities)
}
