package layers

import (
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// ICMP message types.
const (
	ICMPEchoReply       uint8 = 0
	ICMPDestUnreachable uint8 = 3
	ICMPSourceQuench    uint8 = 4
	ICMPRedirect        uint8 = 5
	ICMPEchoRequest     uint8 = 8
	ICMPTimeExceeded    uint8 = 11
	ICMPParamProblem    uint8 = 12
	ICMPTimestampReq    uint8 = 13
	ICMPTimestampReply  uint8 = 14
	ICMPInfoRequest     uint8 = 15
	ICMPInfoReply       uint8 = 16
	ICMPAddressMaskReq  uint8 = 17
	ICMPAddressMaskRep  uint8 = 18
)

const icmpHeaderSize = 8

// ICMP is an ICMPv4 message. The 4-byte field after the checksum is a
// union discriminated by the message type; the relevant accessor
// fields are serialized according to MsgType. Error messages may carry
// an RFC 4884 extension structure after the original-datagram excerpt;
// it is emitted as the trailer and covered by the checksum.
type ICMP struct {
	pdu.Base
	MsgType uint8
	Code    uint8

	// Union fields; which ones reach the wire depends on MsgType.
	ID      uint16     // echo, timestamp, info, address mask
	Seq     uint16     // echo, timestamp, info, address mask
	Gateway netip.Addr // redirect
	Pointer uint8      // parameter problem
	OrigLen uint8      // RFC 4884 length of the original datagram, 32-bit words
	MTU     uint16     // fragmentation needed

	Extensions ICMPExtensions

	wireChecksum uint16
}

// NewICMP builds a message of the given type.
func NewICMP(msgType uint8) *ICMP {
	return &ICMP{MsgType: msgType, Gateway: netip.AddrFrom4([4]byte{})}
}

// NewICMPEcho builds an echo request with the given identifier and
// sequence number.
func NewICMPEcho(id, seq uint16) *ICMP {
	e := NewICMP(ICMPEchoRequest)
	e.ID = id
	e.Seq = seq
	return e
}

// ParseICMP dissects an ICMPv4 message. For error messages carrying an
// RFC 4884 length, the original-datagram excerpt becomes the child and
// the extension structure is parsed from beyond it.
func ParseICMP(data []byte) (*ICMP, error) {
	if len(data) < icmpHeaderSize {
		return nil, fmt.Errorf("%w: icmp header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	ic := &ICMP{Gateway: netip.AddrFrom4([4]byte{})}
	ic.MsgType, _ = in.ReadU8()
	ic.Code, _ = in.ReadU8()
	ic.wireChecksum, _ = in.ReadU16()
	switch ic.MsgType {
	case ICMPEchoReply, ICMPEchoRequest, ICMPTimestampReq, ICMPTimestampReply,
		ICMPInfoRequest, ICMPInfoReply, ICMPAddressMaskReq, ICMPAddressMaskRep:
		ic.ID, _ = in.ReadU16()
		ic.Seq, _ = in.ReadU16()
	case ICMPRedirect:
		b, _ := in.ReadBytes(4)
		ic.Gateway = netip.AddrFrom4([4]byte(b))
	case ICMPParamProblem:
		ic.Pointer, _ = in.ReadU8()
		ic.OrigLen, _ = in.ReadU8()
		in.Skip(2)
	default:
		in.Skip(1)
		ic.OrigLen, _ = in.ReadU8()
		ic.MTU, _ = in.ReadU16()
	}

	rest := in.Peek()
	if ic.OrigLen > 0 && int(ic.OrigLen)*4 < len(rest) {
		excerpt := rest[:int(ic.OrigLen)*4]
		ext, err := parseICMPExtensions(rest[int(ic.OrigLen)*4:])
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

func (ic *ICMP) Type() pdu.Type   { return pdu.TypeICMP }
func (ic *ICMP) HeaderSize() int  { return icmpHeaderSize }
func (ic *ICMP) TrailerSize() int { return ic.Extensions.WireSize() }

// WireChecksum returns the checksum field as parsed or last written.
func (ic *ICMP) WireChecksum() uint16 { return ic.wireChecksum }

func (ic *ICMP) Clone() pdu.PDU {
	c := *ic
	c.Base = pdu.Base{}
	c.Extensions = ic.Extensions.clone()
	pdu.Adopt(&c, ic.CloneChild())
	return &c
}

func (ic *ICMP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:icmpHeaderSize])
	out.WriteU8(ic.MsgType)
	out.WriteU8(ic.Code)
	out.WriteU16(0) // checksum, patched below
	var err error
	switch ic.MsgType {
	case ICMPEchoReply, ICMPEchoRequest, ICMPTimestampReq, ICMPTimestampReply,
		ICMPInfoRequest, ICMPInfoReply, ICMPAddressMaskReq, ICMPAddressMaskRep:
		out.WriteU16(ic.ID)
		err = out.WriteU16(ic.Seq)
	case ICMPRedirect:
		gw := ic.Gateway.As4()
		err = out.WriteBytes(gw[:])
	case ICMPParamProblem:
		out.WriteU8(ic.Pointer)
		out.WriteU8(ic.origLenForWire(total))
		err = out.WriteU16(0)
	default:
		out.WriteU8(0)
		out.WriteU8(ic.origLenForWire(total))
		err = out.WriteU16(ic.MTU)
	}
	if err != nil {
		return err
	}
	if ext := ic.Extensions.WireSize(); ext > 0 {
		if err := ic.Extensions.write(buf[total-ext : total]); err != nil {
			return err
		}
	}
	ck := checksum.Checksum(buf[:total])
	buf[2] = byte(ck >> 8)
	buf[3] = byte(ck)
	ic.wireChecksum = ck
	return nil
}

// origLenForWire keeps the RFC 4884 length consistent with the child
// when extensions are present.
func (ic *ICMP) origLenForWire(total int) uint8 {
	if ic.Extensions.HasExtensions() {
		excerpt := total - icmpHeaderSize - ic.Extensions.WireSize()
		return uint8(excerpt / 4)
	}
	return ic.OrigLen
}

// MatchesResponse reports whether data decodes as the echo reply for
// this echo request (matching identifier and sequence).
func (ic *ICMP) MatchesResponse(data []byte) bool {
	if ic.MsgType != ICMPEchoRequest {
		return false
	}
	r, err := ParseICMP(data)
	if err != nil {
		return false
	}
	return r.MsgType == ICMPEchoReply && r.ID == ic.ID && r.Seq == ic.Seq
}

func init() {
	pdu.RegisterIPProto(IPProtoICMP, pdu.TypeICMP, func(b []byte) (pdu.PDU, error) { return ParseICMP(b) })
}
