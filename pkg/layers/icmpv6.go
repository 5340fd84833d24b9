package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// ICMPv6 message types.
const (
	ICMPv6DestUnreachable uint8 = 1
	ICMPv6PacketTooBig    uint8 = 2
	ICMPv6TimeExceeded    uint8 = 3
	ICMPv6ParamProblem    uint8 = 4
	ICMPv6EchoRequest     uint8 = 128
	ICMPv6EchoReply       uint8 = 129
	ICMPv6RouterSolicit   uint8 = 133
	ICMPv6RouterAdvert    uint8 = 134
	ICMPv6NeighborSolicit uint8 = 135
	ICMPv6NeighborAdvert  uint8 = 136
	ICMPv6Redirect        uint8 = 137
)

const icmpv6HeaderSize = 8

// ICMPv6 is an ICMPv6 message. The checksum always includes the IPv6
// pseudo-header; serializing without an enclosing IPv6 layer leaves it
// zero. Error messages may carry RFC 4884 extensions like ICMPv4.
type ICMPv6 struct {
	pdu.Base
	MsgType uint8
	Code    uint8

	ID      uint16 // echo
	Seq     uint16 // echo
	MTU     uint32 // packet too big
	Pointer uint32 // parameter problem
	OrigLen uint8  // RFC 4884 length, 64-bit words for ICMPv6

	Extensions ICMPExtensions

	wireChecksum uint16
}

// NewICMPv6 builds a message of the given type.
func NewICMPv6(msgType uint8) *ICMPv6 { return &ICMPv6{MsgType: msgType} }

// NewICMPv6Echo builds an echo request.
func NewICMPv6Echo(id, seq uint16) *ICMPv6 {
	e := NewICMPv6(ICMPv6EchoRequest)
	e.ID = id
	e.Seq = seq
	return e
}

// ParseICMPv6 dissects an ICMPv6 message.
func ParseICMPv6(data []byte) (*ICMPv6, error) {
	if len(data) < icmpv6HeaderSize {
		return nil, fmt.Errorf("%w: icmpv6 header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	ic := &ICMPv6{}
	ic.MsgType, _ = in.ReadU8()
	ic.Code, _ = in.ReadU8()
	ic.wireChecksum, _ = in.ReadU16()
	switch ic.MsgType {
	case ICMPv6EchoRequest, ICMPv6EchoReply:
		ic.ID, _ = in.ReadU16()
		ic.Seq, _ = in.ReadU16()
	case ICMPv6PacketTooBig:
		ic.MTU, _ = in.ReadU32()
	case ICMPv6ParamProblem:
		ic.Pointer, _ = in.ReadU32()
	case ICMPv6DestUnreachable, ICMPv6TimeExceeded:
		ic.OrigLen, _ = in.ReadU8()
		in.Skip(3)
	default:
		in.Skip(4)
	}

	rest := in.Peek()
	if ic.OrigLen > 0 && int(ic.OrigLen)*8 < len(rest) {
		excerpt := rest[:int(ic.OrigLen)*8]
		ext, err := parseICMPExtensions(rest[int(ic.OrigLen)*8:])
		if err == nil {
			ic.Extensions = ext
			rest = excerpt
		}
	}
	if len(rest) > 0 {
		pdu.Adopt(ic, pdu.NewRaw(rest))
	}
	return ic, nil
}

func (ic *ICMPv6) Type() pdu.Type   { return pdu.TypeICMPv6 }
func (ic *ICMPv6) HeaderSize() int  { return icmpv6HeaderSize }
func (ic *ICMPv6) TrailerSize() int { return ic.Extensions.WireSize() }

// WireChecksum returns the checksum field as parsed or last written.
func (ic *ICMPv6) WireChecksum() uint16 { return ic.wireChecksum }

func (ic *ICMPv6) Clone() pdu.PDU {
	c := *ic
	c.Base = pdu.Base{}
	c.Extensions = ic.Extensions.clone()
	pdu.Adopt(&c, ic.CloneChild())
	return &c
}

func (ic *ICMPv6) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:icmpv6HeaderSize])
	out.WriteU8(ic.MsgType)
	out.WriteU8(ic.Code)
	out.WriteU16(0) // checksum, patched below
	var err error
	switch ic.MsgType {
	case ICMPv6EchoRequest, ICMPv6EchoReply:
		out.WriteU16(ic.ID)
		err = out.WriteU16(ic.Seq)
	case ICMPv6PacketTooBig:
		err = out.WriteU32(ic.MTU)
	case ICMPv6ParamProblem:
		err = out.WriteU32(ic.Pointer)
	case ICMPv6DestUnreachable, ICMPv6TimeExceeded:
		out.WriteU8(ic.origLenForWire(total))
		err = out.Fill(3, 0)
	default:
		err = out.Fill(4, 0)
	}
	if err != nil {
		return err
	}
	if ext := ic.Extensions.WireSize(); ext > 0 {
		if err := ic.Extensions.write(buf[total-ext : total]); err != nil {
			return err
		}
	}
	ck := uint16(0)
	if acc, ok := pseudoHeaderSum(ic, IPProtoICMPv6, total); ok {
		ck = checksum.Fold(checksum.Sum(buf[:total], acc))
	}
	buf[2] = byte(ck >> 8)
	buf[3] = byte(ck)
	ic.wireChecksum = ck
	return nil
}

func (ic *ICMPv6) origLenForWire(total int) uint8 {
	if ic.Extensions.HasExtensions() {
		excerpt := total - icmpv6HeaderSize - ic.Extensions.WireSize()
		return uint8(excerpt / 8)
	}
	return ic.OrigLen
}

// MatchesResponse reports whether data decodes as the echo reply for
// this echo request.
func (ic *ICMPv6) MatchesResponse(data []byte) bool {
	if ic.MsgType != ICMPv6EchoRequest {
		return false
	}
	r, err := ParseICMPv6(data)
	if err != nil {
		return false
	}
	return r.MsgType == ICMPv6EchoReply && r.ID == ic.ID && r.Seq == ic.Seq
}

func init() {
	pdu.RegisterIPProto(IPProtoICMPv6, pdu.TypeICMPv6, func(b []byte) (pdu.PDU, error) { return ParseICMPv6(b) })
}
