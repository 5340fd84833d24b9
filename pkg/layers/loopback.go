package layers

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// BSD loopback address families.
const (
	LoopbackFamilyInet  uint32 = 2
	LoopbackFamilyInet6 uint32 = 24 // varies by BSD flavor; 24, 28 and 30 all appear
)

const loopbackHeaderSize = 4

// Loopback is the BSD loopback (NULL DLT) pseudo-header: a 4-byte
// address family written in the capturing host's byte order. Parsing
// accepts either order; serialization emits little-endian.
type Loopback struct {
	pdu.Base
	Family uint32
}

// NewLoopback builds an IPv4 loopback header.
func NewLoopback() *Loopback { return &Loopback{Family: LoopbackFamilyInet} }

// ParseLoopback dissects a loopback frame.
func ParseLoopback(data []byte) (*Loopback, error) {
	if len(data) < loopbackHeaderSize {
		return nil, fmt.Errorf("%w: loopback header", pdu.ErrMalformed)
	}
	l := &Loopback{Family: binary.LittleEndian.Uint32(data)}
	if l.Family > 0xFFFF {
		// Written by an opposite-endian host.
		l.Family = binary.BigEndian.Uint32(data)
	}
	rest := data[loopbackHeaderSize:]
	switch l.Family {
	case LoopbackFamilyInet:
		if inner, err := ParseIP(rest); err == nil {
			pdu.Adopt(l, inner)
		} else {
			pdu.Adopt(l, pdu.NewRaw(rest))
		}
	case 24, 28, 30:
		if inner, err := ParseIPv6(rest); err == nil {
			pdu.Adopt(l, inner)
		} else {
			pdu.Adopt(l, pdu.NewRaw(rest))
		}
	default:
		if len(rest) > 0 {
			pdu.Adopt(l, pdu.NewRaw(rest))
		}
	}
	return l, nil
}

func (l *Loopback) Type() pdu.Type  { return pdu.TypeLoopback }
func (l *Loopback) HeaderSize() int { return loopbackHeaderSize }

func (l *Loopback) Clone() pdu.PDU {
	c := *l
	c.Base = pdu.Base{}
	pdu.Adopt(&c, l.CloneChild())
	return &c
}

func (l *Loopback) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:loopbackHeaderSize])
	return out.WriteU32LE(l.Family)
}

// PKTAP is the Apple packet-tap metadata header. The header body is
// preserved verbatim; the inner frame dispatches through the DLT
// table on the header's dlt field.
type PKTAP struct {
	pdu.Base
	header []byte
}

const pktapMinHeaderSize = 12

// ParsePKTAP dissects a PKTAP frame.
func ParsePKTAP(data []byte) (*PKTAP, error) {
	if len(data) < pktapMinHeaderSize {
		return nil, fmt.Errorf("%w: pktap header", pdu.ErrMalformed)
	}
	length := int(binary.LittleEndian.Uint32(data))
	if length < pktapMinHeaderSize || length > len(data) {
		return nil, fmt.Errorf("%w: pktap length %d", pdu.ErrMalformed, length)
	}
	p := &PKTAP{header: append([]byte{}, data[:length]...)}
	dlt := int(binary.LittleEndian.Uint32(data[8:]))
	rest := data[length:]
	if len(rest) > 0 {
		if inner, err := pdu.FromLinkType(dlt, rest); err == nil {
			pdu.Adopt(p, inner)
		} else {
			pdu.Adopt(p, pdu.NewRaw(rest))
		}
	}
	return p, nil
}

func (p *PKTAP) Type() pdu.Type  { return pdu.TypePKTAP }
func (p *PKTAP) HeaderSize() int { return len(p.header) }

// DLT returns the inner link type recorded in the header.
func (p *PKTAP) DLT() int { return int(binary.LittleEndian.Uint32(p.header[8:])) }

func (p *PKTAP) Clone() pdu.PDU {
	c := &PKTAP{header: append([]byte{}, p.header...)}
	pdu.Adopt(c, p.CloneChild())
	return c
}

func (p *PKTAP) WriteHeader(buf []byte, total int) error {
	if len(buf) < len(p.header) {
		return pdu.ErrSerialize
	}
	copy(buf, p.header)
	return nil
}

func init() {
	pdu.RegisterLinkType(DLTNull, func(b []byte) (pdu.PDU, error) { return ParseLoopback(b) })
	pdu.RegisterLinkType(DLTLoop, func(b []byte) (pdu.PDU, error) { return ParseLoopback(b) })
	pdu.RegisterLinkType(DLTPKTAP, func(b []byte) (pdu.PDU, error) { return ParsePKTAP(b) })
}
