package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// 802.11 frame types.
const (
	Dot11TypeMgmt    uint8 = 0
	Dot11TypeControl uint8 = 1
	Dot11TypeData    uint8 = 2
)

// Management subtypes.
const (
	Dot11SubAssocReq    uint8 = 0
	Dot11SubAssocResp   uint8 = 1
	Dot11SubReassocReq  uint8 = 2
	Dot11SubReassocResp uint8 = 3
	Dot11SubProbeReq    uint8 = 4
	Dot11SubProbeResp   uint8 = 5
	Dot11SubBeacon      uint8 = 8
	Dot11SubDisassoc    uint8 = 10
	Dot11SubAuth        uint8 = 11
	Dot11SubDeauth      uint8 = 12
	Dot11SubAction      uint8 = 13
)

// Control subtypes.
const (
	Dot11SubBlockAckReq uint8 = 8
	Dot11SubBlockAck    uint8 = 9
	Dot11SubPSPoll      uint8 = 10
	Dot11SubRTS         uint8 = 11
	Dot11SubCTS         uint8 = 12
	Dot11SubACK         uint8 = 13
	Dot11SubCFEnd       uint8 = 14
	Dot11SubCFEndACK    uint8 = 15
)

// Data subtypes.
const (
	Dot11SubData    uint8 = 0
	Dot11SubQoSData uint8 = 8
)

// Tagged parameter IDs carried by management frames.
const (
	Dot11TagSSID            uint16 = 0
	Dot11TagRates           uint16 = 1
	Dot11TagDSParam         uint16 = 3
	Dot11TagTIM             uint16 = 5
	Dot11TagCountry         uint16 = 7
	Dot11TagPowerConstraint uint16 = 32
	Dot11TagTPCReport       uint16 = 35
	Dot11TagChannelSwitch   uint16 = 37
	Dot11TagQuiet           uint16 = 40
	Dot11TagERP             uint16 = 42
	Dot11TagHTCapabilities  uint16 = 45
	Dot11TagRSN             uint16 = 48
	Dot11TagVendorSpecific  uint16 = 221
)

// dot11Header is the frame control word, duration/ID and the first
// address, common to every 802.11 frame. Multi-byte 802.11 header
// fields are little-endian on the wire.
type dot11Header struct {
	pdu.Base
	Subtype    uint8
	ToDS       bool
	FromDS     bool
	MoreFrag   bool
	Retry      bool
	PowerMgmt  bool
	MoreData   bool
	Protected  bool
	OrderBit   bool
	DurationID uint16
	Addr1      pdu.HWAddress
}

// parseCommon fills the header from the 2-byte frame control plus
// duration and addr1 (the minimum any frame carries).
func (h *dot11Header) parseCommon(in *stream.Input) error {
	b0, err := in.ReadU8()
	if err != nil {
		return fmt.Errorf("%w: 802.11 frame control", pdu.ErrMalformed)
	}
	h.Subtype = b0 >> 4
	b1, err := in.ReadU8()
	if err != nil {
		return fmt.Errorf("%w: 802.11 frame control", pdu.ErrMalformed)
	}
	h.ToDS = b1&0x01 != 0
	h.FromDS = b1&0x02 != 0
	h.MoreFrag = b1&0x04 != 0
	h.Retry = b1&0x08 != 0
	h.PowerMgmt = b1&0x10 != 0
	h.MoreData = b1&0x20 != 0
	h.Protected = b1&0x40 != 0
	h.OrderBit = b1&0x80 != 0
	if h.DurationID, err = in.ReadU16LE(); err != nil {
		return fmt.Errorf("%w: 802.11 duration", pdu.ErrMalformed)
	}
	a, err := in.ReadBytes(6)
	if err != nil {
		return fmt.Errorf("%w: 802.11 addr1", pdu.ErrMalformed)
	}
	copy(h.Addr1[:], a)
	return nil
}

func (h *dot11Header) writeCommon(out *stream.Output, frameType uint8) error {
	out.WriteU8(frameType<<2 | h.Subtype<<4)
	var b1 uint8
	if h.ToDS {
		b1 |= 0x01
	}
	if h.FromDS {
		b1 |= 0x02
	}
	if h.MoreFrag {
		b1 |= 0x04
	}
	if h.Retry {
		b1 |= 0x08
	}
	if h.PowerMgmt {
		b1 |= 0x10
	}
	if h.MoreData {
		b1 |= 0x20
	}
	if h.Protected {
		b1 |= 0x40
	}
	if h.OrderBit {
		b1 |= 0x80
	}
	out.WriteU8(b1)
	out.WriteU16LE(h.DurationID)
	return out.WriteBytes(h.Addr1[:])
}

// ParseDot11 dissects any 802.11 frame, selecting the concrete
// subclass from the type/subtype bits of the frame control word.
func ParseDot11(data []byte) (pdu.PDU, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: 802.11 frame control", pdu.ErrMalformed)
	}
	frameType := (data[0] >> 2) & 0x3
	subtype := data[0] >> 4
	switch frameType {
	case Dot11TypeMgmt:
		return parseDot11Mgmt(subtype, data)
	case Dot11TypeControl:
		return parseDot11Control(subtype, data)
	case Dot11TypeData:
		return ParseDot11Data(data)
	}
	return nil, fmt.Errorf("%w: 802.11 frame type %d", pdu.ErrMalformed, frameType)
}

// Dot11Data is an 802.11 data frame. With both DS bits set the header
// carries a fourth address; the QoS-Data subtype adds a QoS control
// word.
type Dot11Data struct {
	dot11Header
	Addr2      pdu.HWAddress
	Addr3      pdu.HWAddress
	FragSeq    uint16
	Addr4      pdu.HWAddress // WDS frames only
	QoSControl uint16        // QoS subtypes only
}

// NewDot11Data builds a plain data frame.
func NewDot11Data(dst, src pdu.HWAddress) *Dot11Data {
	d := &Dot11Data{}
	d.Subtype = Dot11SubData
	d.Addr1 = dst
	d.Addr2 = src
	return d
}

// NewDot11QoSData builds a QoS data frame.
func NewDot11QoSData(dst, src pdu.HWAddress) *Dot11Data {
	d := NewDot11Data(dst, src)
	d.Subtype = Dot11SubQoSData
	return d
}

// ParseDot11Data dissects a data frame; the frame body becomes the
// child (LLC/SNAP when unencrypted, Raw otherwise).
func ParseDot11Data(data []byte) (*Dot11Data, error) {
	in := stream.NewInput(data)
	d := &Dot11Data{}
	if err := d.parseCommon(in); err != nil {
		return nil, err
	}
	b, err := in.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: 802.11 data header", pdu.ErrMalformed)
	}
	copy(d.Addr2[:], b)
	if b, err = in.ReadBytes(6); err != nil {
		return nil, fmt.Errorf("%w: 802.11 data header", pdu.ErrMalformed)
	}
	copy(d.Addr3[:], b)
	if d.FragSeq, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: 802.11 data header", pdu.ErrMalformed)
	}
	if d.ToDS && d.FromDS {
		if b, err = in.ReadBytes(6); err != nil {
			return nil, fmt.Errorf("%w: 802.11 addr4", pdu.ErrMalformed)
		}
		copy(d.Addr4[:], b)
	}
	if d.qos() {
		if d.QoSControl, err = in.ReadU16LE(); err != nil {
			return nil, fmt.Errorf("%w: 802.11 qos control", pdu.ErrMalformed)
		}
	}
	if in.Remaining() > 0 {
		if d.Protected {
			pdu.Adopt(d, pdu.NewRaw(in.Peek()))
		} else if llc, err := ParseLLC(in.Peek()); err == nil {
			pdu.Adopt(d, llc)
		} else {
			pdu.Adopt(d, pdu.NewRaw(in.Peek()))
		}
	}
	return d, nil
}

func (d *Dot11Data) qos() bool { return d.Subtype&0x08 != 0 }

func (d *Dot11Data) Type() pdu.Type {
	if d.qos() {
		return pdu.TypeDot11QoSData
	}
	return pdu.TypeDot11Data
}

func (d *Dot11Data) HeaderSize() int {
	n := 24
	if d.ToDS && d.FromDS {
		n += 6
	}
	if d.qos() {
		n += 2
	}
	return n
}

func (d *Dot11Data) Clone() pdu.PDU {
	c := *d
	c.Base = pdu.Base{}
	pdu.Adopt(&c, d.CloneChild())
	return &c
}

func (d *Dot11Data) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:d.HeaderSize()])
	if err := d.writeCommon(out, Dot11TypeData); err != nil {
		return err
	}
	out.WriteBytes(d.Addr2[:])
	out.WriteBytes(d.Addr3[:])
	if err := out.WriteU16LE(d.FragSeq); err != nil {
		return err
	}
	if d.ToDS && d.FromDS {
		if err := out.WriteBytes(d.Addr4[:]); err != nil {
			return err
		}
	}
	if d.qos() {
		return out.WriteU16LE(d.QoSControl)
	}
	return nil
}

func init() {
	pdu.RegisterLinkType(DLTDot11, ParseDot11)
}
