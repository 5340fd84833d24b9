package layers

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// TCP flag bits. NS lives in the low bit of the data-offset byte on
// the wire; the other eight share the flags byte.
const (
	TCPFin uint16 = 1 << 0
	TCPSyn uint16 = 1 << 1
	TCPRst uint16 = 1 << 2
	TCPPsh uint16 = 1 << 3
	TCPAck uint16 = 1 << 4
	TCPUrg uint16 = 1 << 5
	TCPEce uint16 = 1 << 6
	TCPCwr uint16 = 1 << 7
	TCPNs  uint16 = 1 << 8
)

// TCP option kinds.
const (
	TCPOptionEOL         uint16 = 0
	TCPOptionNOP         uint16 = 1
	TCPOptionMSS         uint16 = 2
	TCPOptionWScale      uint16 = 3
	TCPOptionSACKOK      uint16 = 4
	TCPOptionSACK        uint16 = 5
	TCPOptionTimestamp   uint16 = 8
	TCPOptionAltChecksum uint16 = 14
)

const tcpMinHeaderSize = 20

// SACKBlock is one (left, right) edge pair from a SACK option.
type SACKBlock struct {
	Left  uint32
	Right uint32
}

// TCP is a TCP segment header. The data offset and checksum are
// recomputed on serialization; the checksum uses the pseudo-header of
// the enclosing IP layer and stays zero when there is none.
type TCP struct {
	pdu.Base
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint16 // TCPFin … TCPNs
	Window  uint16
	UrgPtr  uint16
	Options pdu.Options

	wireChecksum uint16
}

// NewTCP builds a segment with the given ports and a sane default
// window.
func NewTCP(sport, dport uint16) *TCP {
	return &TCP{SrcPort: sport, DstPort: dport, Window: 32768}
}

// ParseTCP dissects a TCP header; the remainder past the data offset
// becomes the payload.
func ParseTCP(data []byte) (*TCP, error) {
	if len(data) < tcpMinHeaderSize {
		return nil, fmt.Errorf("%w: tcp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	t := &TCP{}
	t.SrcPort, _ = in.ReadU16()
	t.DstPort, _ = in.ReadU16()
	t.Seq, _ = in.ReadU32()
	t.Ack, _ = in.ReadU32()
	offFlags, _ := in.ReadU16()
	dataOff := int(offFlags>>12) * 4
	if dataOff < tcpMinHeaderSize || dataOff > len(data) {
		return nil, fmt.Errorf("%w: tcp data offset %d", pdu.ErrMalformed, dataOff)
	}
	t.Flags = offFlags & 0x01FF
	t.Window, _ = in.ReadU16()
	t.wireChecksum, _ = in.ReadU16()
	t.UrgPtr, _ = in.ReadU16()
	if err := t.parseOptions(data[tcpMinHeaderSize:dataOff]); err != nil {
		return nil, err
	}
	if dataOff < len(data) {
		pdu.Adopt(t, pdu.NewRaw(data[dataOff:]))
	}
	return t, nil
}

func (t *TCP) parseOptions(data []byte) error {
	in := stream.NewInput(data)
	for in.Remaining() > 0 {
		kind, _ := in.ReadU8()
		switch uint16(kind) {
		case TCPOptionEOL:
			return nil
		case TCPOptionNOP:
			t.Options.Add(TCPOptionNOP, nil)
		default:
			l, err := in.ReadU8()
			if err != nil || l < 2 || !in.CanRead(int(l)-2) {
				return fmt.Errorf("%w: tcp option %d", pdu.ErrMalformed, kind)
			}
			payload, _ := in.ReadBytes(int(l) - 2)
			t.Options.Add(uint16(kind), payload)
		}
	}
	return nil
}

func (t *TCP) Type() pdu.Type { return pdu.TypeTCP }

func (t *TCP) HeaderSize() int {
	return tcpMinHeaderSize + pad4(t.optionsWireSize())
}

func (t *TCP) optionsWireSize() int {
	n := 0
	for _, o := range t.Options {
		if o.Kind == TCPOptionNOP || o.Kind == TCPOptionEOL {
			n++
		} else {
			n += 2 + len(o.Data)
		}
	}
	return n
}

// SetFlag sets or clears one flag bit.
func (t *TCP) SetFlag(bit uint16, v bool) {
	if v {
		t.Flags |= bit
	} else {
		t.Flags &^= bit
	}
}

// MSS returns the maximum-segment-size option value.
func (t *TCP) MSS() (uint16, bool) {
	o, ok := t.Options.Find(TCPOptionMSS)
	if !ok || len(o.Data) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(o.Data), true
}

// SetMSS adds an MSS option.
func (t *TCP) SetMSS(v uint16) {
	t.Options.Add(TCPOptionMSS, []byte{byte(v >> 8), byte(v)})
}

// WindowScale returns the window-scale shift count.
func (t *TCP) WindowScale() (uint8, bool) {
	o, ok := t.Options.Find(TCPOptionWScale)
	if !ok || len(o.Data) != 1 {
		return 0, false
	}
	return o.Data[0], true
}

// SetWindowScale adds a window-scale option.
func (t *TCP) SetWindowScale(shift uint8) {
	t.Options.Add(TCPOptionWScale, []byte{shift})
}

// SACKPermitted reports whether the SACK-permitted option is present.
func (t *TCP) SACKPermitted() bool {
	_, ok := t.Options.Find(TCPOptionSACKOK)
	return ok
}

// SetSACKPermitted adds the empty SACK-permitted option.
func (t *TCP) SetSACKPermitted() {
	t.Options.Add(TCPOptionSACKOK, nil)
}

// SACK returns the edge pairs of the SACK option.
func (t *TCP) SACK() ([]SACKBlock, bool) {
	o, ok := t.Options.Find(TCPOptionSACK)
	if !ok || len(o.Data)%8 != 0 {
		return nil, false
	}
	blocks := make([]SACKBlock, len(o.Data)/8)
	for i := range blocks {
		blocks[i].Left = binary.BigEndian.Uint32(o.Data[i*8:])
		blocks[i].Right = binary.BigEndian.Uint32(o.Data[i*8+4:])
	}
	return blocks, true
}

// SetSACK adds a SACK option with the given edge pairs.
func (t *TCP) SetSACK(blocks []SACKBlock) {
	data := make([]byte, len(blocks)*8)
	for i, b := range blocks {
		binary.BigEndian.PutUint32(data[i*8:], b.Left)
		binary.BigEndian.PutUint32(data[i*8+4:], b.Right)
	}
	t.Options.Add(TCPOptionSACK, data)
}

// Timestamp returns the timestamp option (value, echo reply).
func (t *TCP) Timestamp() (val, echo uint32, ok bool) {
	o, found := t.Options.Find(TCPOptionTimestamp)
	if !found || len(o.Data) != 8 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(o.Data), binary.BigEndian.Uint32(o.Data[4:]), true
}

// SetTimestamp adds a timestamp option.
func (t *TCP) SetTimestamp(val, echo uint32) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data, val)
	binary.BigEndian.PutUint32(data[4:], echo)
	t.Options.Add(TCPOptionTimestamp, data)
}

// AltChecksum returns the alternate-checksum-request kind.
func (t *TCP) AltChecksum() (uint8, bool) {
	o, ok := t.Options.Find(TCPOptionAltChecksum)
	if !ok || len(o.Data) != 1 {
		return 0, false
	}
	return o.Data[0], true
}

// SetAltChecksum adds an alternate-checksum-request option.
func (t *TCP) SetAltChecksum(kind uint8) {
	t.Options.Add(TCPOptionAltChecksum, []byte{kind})
}

// WireChecksum returns the checksum field as parsed or last written.
func (t *TCP) WireChecksum() uint16 { return t.wireChecksum }

func (t *TCP) Clone() pdu.PDU {
	c := *t
	c.Base = pdu.Base{}
	c.Options = t.Options.Clone()
	pdu.Adopt(&c, t.CloneChild())
	return &c
}

func (t *TCP) WriteHeader(buf []byte, total int) error {
	hdr := t.HeaderSize()
	out := stream.NewOutput(buf[:hdr])
	out.WriteU16(t.SrcPort)
	out.WriteU16(t.DstPort)
	out.WriteU32(t.Seq)
	out.WriteU32(t.Ack)
	out.WriteU16(uint16(hdr/4)<<12 | t.Flags&0x01FF)
	out.WriteU16(t.Window)
	out.WriteU16(0) // checksum, patched below
	if err := out.WriteU16(t.UrgPtr); err != nil {
		return err
	}
	if err := t.writeOptions(out); err != nil {
		return err
	}
	ck := t.computeChecksum(buf[:total], total)
	buf[16] = byte(ck >> 8)
	buf[17] = byte(ck)
	t.wireChecksum = ck
	return nil
}

// computeChecksum folds the segment plus the enclosing IP layer's
// pseudo-header. Without an enclosing IP layer the checksum stays
// zero.
func (t *TCP) computeChecksum(segment []byte, length int) uint16 {
	acc, ok := pseudoHeaderSum(t, IPProtoTCP, length)
	if !ok {
		return 0
	}
	return checksum.Fold(checksum.Sum(segment, acc))
}

func (t *TCP) writeOptions(out *stream.Output) error {
	for _, o := range t.Options {
		switch o.Kind {
		case TCPOptionNOP, TCPOptionEOL:
			if err := out.WriteU8(uint8(o.Kind)); err != nil {
				return err
			}
		default:
			if len(o.Data) > 253 {
				return fmt.Errorf("%w: tcp option %d too long", pdu.ErrSerialize, o.Kind)
			}
			out.WriteU8(uint8(o.Kind))
			out.WriteU8(uint8(2 + len(o.Data)))
			if err := out.WriteBytes(o.Data); err != nil {
				return err
			}
		}
	}
	// Pad to the 4-byte boundary implied by the data offset.
	return out.Fill(out.Remaining(), uint8(TCPOptionEOL))
}

// MatchesResponse reports whether data decodes as a segment answering
// this one: ports swapped and either ack == seq+1 (handshake) or an
// ack within the send window.
func (t *TCP) MatchesResponse(data []byte) bool {
	r, err := ParseTCP(data)
	if err != nil {
		return false
	}
	if r.SrcPort != t.DstPort || r.DstPort != t.SrcPort {
		return false
	}
	if r.Flags&TCPAck == 0 {
		return false
	}
	if r.Ack == t.Seq+1 {
		return true
	}
	return r.Ack-t.Seq <= uint32(t.Window)
}

// pseudoHeaderSum walks the parent chain from p to the enclosing IP
// layer and accumulates the matching pseudo-header.
func pseudoHeaderSum(p pdu.PDU, proto uint8, length int) (uint32, bool) {
	for cur := p.Parent(); cur != nil; cur = cur.Parent() {
		switch ip := cur.(type) {
		case *IP:
			return checksum.PseudoIPv4(ip.SrcAddr, ip.DstAddr, proto, length, 0), true
		case *IPv6:
			return checksum.PseudoIPv6(ip.SrcAddr, ip.DstAddr, proto, length, 0), true
		}
	}
	return 0, false
}

func init() {
	pdu.RegisterIPProto(IPProtoTCP, pdu.TypeTCP, func(b []byte) (pdu.PDU, error) { return ParseTCP(b) })
}
