package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	icmpExtensionVersion    = 2
	icmpExtensionHeaderSize = 4
	icmpExtObjectHeaderSize = 4
)

// ICMPExtensionObject is one RFC 4884 extension object: class, type
// and an opaque payload padded to 32 bits on the wire.
type ICMPExtensionObject struct {
	Class   uint8
	CType   uint8
	Payload []byte
}

func (o ICMPExtensionObject) wireSize() int {
	return icmpExtObjectHeaderSize + pad4(len(o.Payload))
}

// ICMPExtensions is the RFC 4884 extension structure appended after
// the original-datagram excerpt of ICMP and ICMPv6 error messages.
type ICMPExtensions struct {
	Objects []ICMPExtensionObject
}

// HasExtensions reports whether any object is present.
func (e *ICMPExtensions) HasExtensions() bool { return len(e.Objects) > 0 }

// WireSize returns the serialized size including the 4-byte extension
// header, or 0 when empty.
func (e *ICMPExtensions) WireSize() int {
	if len(e.Objects) == 0 {
		return 0
	}
	n := icmpExtensionHeaderSize
	for _, o := range e.Objects {
		n += o.wireSize()
	}
	return n
}

func (e *ICMPExtensions) clone() ICMPExtensions {
	out := ICMPExtensions{Objects: make([]ICMPExtensionObject, len(e.Objects))}
	for i, o := range e.Objects {
		p := make([]byte, len(o.Payload))
		copy(p, o.Payload)
		out.Objects[i] = ICMPExtensionObject{Class: o.Class, CType: o.CType, Payload: p}
	}
	return out
}

// parseICMPExtensions reads an extension structure from data.
func parseICMPExtensions(data []byte) (ICMPExtensions, error) {
	var e ICMPExtensions
	in := stream.NewInput(data)
	verRes, err := in.ReadU16()
	if err != nil {
		return e, fmt.Errorf("%w: icmp extension header", pdu.ErrMalformed)
	}
	if verRes>>12 != icmpExtensionVersion {
		return e, fmt.Errorf("%w: icmp extension version %d", pdu.ErrMalformed, verRes>>12)
	}
	if _, err := in.ReadU16(); err != nil { // checksum, recomputed on write
		return e, fmt.Errorf("%w: icmp extension header", pdu.ErrMalformed)
	}
	for in.Remaining() >= icmpExtObjectHeaderSize {
		length, _ := in.ReadU16()
		class, _ := in.ReadU8()
		ctype, _ := in.ReadU8()
		if int(length) < icmpExtObjectHeaderSize || !in.CanRead(int(length)-icmpExtObjectHeaderSize) {
			return e, fmt.Errorf("%w: icmp extension object length %d", pdu.ErrMalformed, length)
		}
		payload, _ := in.ReadBytes(int(length) - icmpExtObjectHeaderSize)
		e.Objects = append(e.Objects, ICMPExtensionObject{Class: class, CType: ctype, Payload: payload})
		// Objects are 32-bit aligned; consume inter-object padding.
		if rem := pad4(int(length)) - int(length); rem > 0 && in.CanRead(rem) {
			in.Skip(rem)
		}
	}
	return e, nil
}

// writeICMPExtensions renders the structure into buf and patches the
// extension checksum.
func (e *ICMPExtensions) write(buf []byte) error {
	out := stream.NewOutput(buf)
	if err := out.WriteU16(icmpExtensionVersion << 12); err != nil {
		return err
	}
	out.WriteU16(0) // checksum, patched below
	for _, o := range e.Objects {
		out.WriteU16(uint16(icmpExtObjectHeaderSize + len(o.Payload)))
		out.WriteU8(o.Class)
		out.WriteU8(o.CType)
		if err := out.WriteBytes(o.Payload); err != nil {
			return err
		}
		if rem := pad4(len(o.Payload)) - len(o.Payload); rem > 0 {
			if err := out.Fill(rem, 0); err != nil {
				return err
			}
		}
	}
	ck := checksum.Checksum(buf[:e.WireSize()])
	buf[2] = byte(ck >> 8)
	buf[3] = byte(ck)
	return nil
}
