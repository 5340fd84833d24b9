package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// Dot11Control covers the 802.11 control subtypes. All control frames
// carry the frame control word, a duration (or AID for PS-Poll) and a
// receiver address; most add a transmitter address, and the block-ack
// family adds a control word, a sequence and (for BlockAck) the
// bitmap. The minimum size per subtype follows the standard: ACK and
// CTS are 10 bytes, RTS/PS-Poll/CF-End are 16.
type Dot11Control struct {
	dot11Header
	Addr2      pdu.HWAddress // RTS, PS-Poll, CF-End, BAR, BA
	BARControl uint16        // BAR, BA
	StartSeq   uint16        // BAR, BA
	Bitmap     []byte        // BA (8-byte compressed bitmap)
}

// NewDot11Control builds a control frame of the given subtype.
func NewDot11Control(subtype uint8, receiver pdu.HWAddress) *Dot11Control {
	c := &Dot11Control{}
	c.Subtype = subtype
	c.Addr1 = receiver
	return c
}

func parseDot11Control(subtype uint8, data []byte) (pdu.PDU, error) {
	in := stream.NewInput(data)
	c := &Dot11Control{}
	if err := c.parseCommon(in); err != nil {
		return nil, err
	}
	var err error
	if c.hasAddr2() {
		b, err := in.ReadBytes(6)
		if err != nil {
			return nil, fmt.Errorf("%w: 802.11 control transmitter address", pdu.ErrMalformed)
		}
		copy(c.Addr2[:], b)
	}
	switch subtype {
	case Dot11SubBlockAckReq:
		if c.BARControl, err = in.ReadU16LE(); err != nil {
			return nil, fmt.Errorf("%w: block-ack-req control", pdu.ErrMalformed)
		}
		if c.StartSeq, err = in.ReadU16LE(); err != nil {
			return nil, fmt.Errorf("%w: block-ack-req sequence", pdu.ErrMalformed)
		}
	case Dot11SubBlockAck:
		if c.BARControl, err = in.ReadU16LE(); err != nil {
			return nil, fmt.Errorf("%w: block-ack control", pdu.ErrMalformed)
		}
		if c.StartSeq, err = in.ReadU16LE(); err != nil {
			return nil, fmt.Errorf("%w: block-ack sequence", pdu.ErrMalformed)
		}
		bm, err := in.ReadBytes(8)
		if err != nil {
			return nil, fmt.Errorf("%w: block-ack bitmap", pdu.ErrMalformed)
		}
		c.Bitmap = append([]byte{}, bm...)
	}
	return c, nil
}

func (c *Dot11Control) hasAddr2() bool {
	switch c.Subtype {
	case Dot11SubRTS, Dot11SubPSPoll, Dot11SubCFEnd, Dot11SubCFEndACK,
		Dot11SubBlockAckReq, Dot11SubBlockAck:
		return true
	}
	return false
}

func (c *Dot11Control) Type() pdu.Type {
	switch c.Subtype {
	case Dot11SubRTS:
		return pdu.TypeDot11RTS
	case Dot11SubCTS:
		return pdu.TypeDot11CTS
	case Dot11SubACK:
		return pdu.TypeDot11ACK
	case Dot11SubPSPoll:
		return pdu.TypeDot11PSPoll
	case Dot11SubCFEnd:
		return pdu.TypeDot11CFEnd
	case Dot11SubCFEndACK:
		return pdu.TypeDot11CFEndACK
	case Dot11SubBlockAckReq:
		return pdu.TypeDot11BlockAckReq
	case Dot11SubBlockAck:
		return pdu.TypeDot11BlockAck
	}
	return pdu.TypeDot11Control
}

func (c *Dot11Control) HeaderSize() int {
	n := 10 // frame control + duration + addr1
	if c.hasAddr2() {
		n += 6
	}
	switch c.Subtype {
	case Dot11SubBlockAckReq:
		n += 4
	case Dot11SubBlockAck:
		n += 4 + len(c.Bitmap)
	}
	return n
}

func (c *Dot11Control) Clone() pdu.PDU {
	cl := *c
	cl.Base = pdu.Base{}
	cl.Bitmap = append([]byte{}, c.Bitmap...)
	pdu.Adopt(&cl, c.CloneChild())
	return &cl
}

func (c *Dot11Control) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:c.HeaderSize()])
	if err := c.writeCommon(out, Dot11TypeControl); err != nil {
		return err
	}
	if c.hasAddr2() {
		if err := out.WriteBytes(c.Addr2[:]); err != nil {
			return err
		}
	}
	switch c.Subtype {
	case Dot11SubBlockAckReq:
		out.WriteU16LE(c.BARControl)
		return out.WriteU16LE(c.StartSeq)
	case Dot11SubBlockAck:
		out.WriteU16LE(c.BARControl)
		if err := out.WriteU16LE(c.StartSeq); err != nil {
			return err
		}
		return out.WriteBytes(c.Bitmap)
	}
	return nil
}
