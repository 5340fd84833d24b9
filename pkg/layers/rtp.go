package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	rtpFixedHeaderSize = 12
	rtpVersion         = 2
)

// RTPExtension is the RFC 3550 header extension: a profile-defined
// 16-bit value plus a run of 32-bit words.
type RTPExtension struct {
	Profile uint16
	Words   []uint32
}

// RTP is an RTP packet (RFC 3550 §5.1). The CSRC count, extension
// flag and padding flag are derived from the CSRC list, the Extension
// field and PaddingSize on serialization. The padding trailer's last
// byte carries the total padding length, itself included.
type RTP struct {
	pdu.Base
	Marker      bool
	PayloadType uint8 // 7 bits
	Seq         uint16
	Timestamp   uint32
	SSRC        uint32
	CSRC        []uint32
	Extension   *RTPExtension
	PaddingSize uint8
}

// NewRTP builds an RTP header with the given payload type.
func NewRTP(pt uint8) *RTP { return &RTP{PayloadType: pt & 0x7F} }

// ParseRTP dissects an RTP packet, validating the version, the CSRC
// and extension lengths, and the padding trailer.
func ParseRTP(data []byte) (*RTP, error) {
	if len(data) < rtpFixedHeaderSize {
		return nil, fmt.Errorf("%w: rtp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	r := &RTP{}
	b0, _ := in.ReadU8()
	if b0>>6 != rtpVersion {
		return nil, fmt.Errorf("%w: rtp version %d", pdu.ErrMalformed, b0>>6)
	}
	padding := b0&0x20 != 0
	hasExt := b0&0x10 != 0
	cc := int(b0 & 0x0F)
	b1, _ := in.ReadU8()
	r.Marker = b1&0x80 != 0
	r.PayloadType = b1 & 0x7F
	r.Seq, _ = in.ReadU16()
	r.Timestamp, _ = in.ReadU32()
	r.SSRC, _ = in.ReadU32()
	for i := 0; i < cc; i++ {
		v, err := in.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("%w: rtp csrc list", pdu.ErrMalformed)
		}
		r.CSRC = append(r.CSRC, v)
	}
	if hasExt {
		profile, err := in.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("%w: rtp extension", pdu.ErrMalformed)
		}
		words, err := in.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("%w: rtp extension", pdu.ErrMalformed)
		}
		ext := &RTPExtension{Profile: profile}
		for i := 0; i < int(words); i++ {
			w, err := in.ReadU32()
			if err != nil {
				return nil, fmt.Errorf("%w: rtp extension words", pdu.ErrMalformed)
			}
			ext.Words = append(ext.Words, w)
		}
		r.Extension = ext
	}
	rest := in.Peek()
	if padding {
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: rtp padding flag without padding", pdu.ErrMalformed)
		}
		pad := rest[len(rest)-1]
		if pad == 0 || int(pad) > len(rest) {
			return nil, fmt.Errorf("%w: rtp padding size %d", pdu.ErrMalformed, pad)
		}
		r.PaddingSize = pad
		rest = rest[:len(rest)-int(pad)]
	}
	if len(rest) > 0 {
		pdu.Adopt(r, pdu.NewRaw(rest))
	}
	return r, nil
}

func (r *RTP) Type() pdu.Type { return pdu.TypeRTP }

func (r *RTP) HeaderSize() int {
	n := rtpFixedHeaderSize + len(r.CSRC)*4
	if r.Extension != nil {
		n += 4 + len(r.Extension.Words)*4
	}
	return n
}

func (r *RTP) TrailerSize() int { return int(r.PaddingSize) }

func (r *RTP) Clone() pdu.PDU {
	c := *r
	c.Base = pdu.Base{}
	c.CSRC = append([]uint32(nil), r.CSRC...)
	if r.Extension != nil {
		ext := *r.Extension
		ext.Words = append([]uint32(nil), r.Extension.Words...)
		c.Extension = &ext
	}
	pdu.Adopt(&c, r.CloneChild())
	return &c
}

func (r *RTP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:r.HeaderSize()])
	b0 := uint8(rtpVersion<<6) | uint8(len(r.CSRC)&0x0F)
	if r.PaddingSize > 0 {
		b0 |= 0x20
	}
	if r.Extension != nil {
		b0 |= 0x10
	}
	out.WriteU8(b0)
	b1 := r.PayloadType & 0x7F
	if r.Marker {
		b1 |= 0x80
	}
	out.WriteU8(b1)
	out.WriteU16(r.Seq)
	out.WriteU32(r.Timestamp)
	if err := out.WriteU32(r.SSRC); err != nil {
		return err
	}
	for _, c := range r.CSRC {
		if err := out.WriteU32(c); err != nil {
			return err
		}
	}
	if r.Extension != nil {
		out.WriteU16(r.Extension.Profile)
		if err := out.WriteU16(uint16(len(r.Extension.Words))); err != nil {
			return err
		}
		for _, w := range r.Extension.Words {
			if err := out.WriteU32(w); err != nil {
				return err
			}
		}
	}
	if pad := int(r.PaddingSize); pad > 0 {
		for i := total - pad; i < total-1; i++ {
			buf[i] = 0
		}
		buf[total-1] = r.PaddingSize
	}
	return nil
}
