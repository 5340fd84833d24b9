package layers

import (
	"encoding/binary"
	"fmt"
	"sort"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// RadioTap present-flag bits for the fields this dissector understands
// by name.
const (
	RadioTapTSFT       = 0
	RadioTapFlags      = 1
	RadioTapRate       = 2
	RadioTapChannel    = 3
	RadioTapFHSS       = 4
	RadioTapDBmSignal  = 5
	RadioTapDBmNoise   = 6
	RadioTapLockQual   = 7
	RadioTapTxAtten    = 8
	RadioTapDBTxAtten  = 9
	RadioTapDBmTxPower = 10
	RadioTapAntenna    = 11
	RadioTapDBSignal   = 12
	RadioTapDBNoise    = 13
	RadioTapRxFlags    = 14
	RadioTapTxFlags    = 15
	RadioTapRTSRetries = 16
	RadioTapDataRetry  = 17
	RadioTapXChannel   = 18
	RadioTapMCS        = 19
	RadioTapAMPDU      = 20
	RadioTapVHT        = 21
	RadioTapTimestamp  = 22
)

// radiotapFieldInfo gives size and alignment (relative to the start of
// the radiotap header) per present bit, in bit order.
var radiotapFieldInfo = [...]struct{ size, align int }{
	{8, 8},  // TSFT
	{1, 1},  // Flags
	{1, 1},  // Rate
	{4, 2},  // Channel
	{2, 2},  // FHSS
	{1, 1},  // dBm antenna signal
	{1, 1},  // dBm antenna noise
	{2, 2},  // lock quality
	{2, 2},  // TX attenuation
	{2, 2},  // dB TX attenuation
	{1, 1},  // dBm TX power
	{1, 1},  // antenna
	{1, 1},  // dB antenna signal
	{1, 1},  // dB antenna noise
	{2, 2},  // RX flags
	{2, 2},  // TX flags
	{1, 1},  // RTS retries
	{1, 1},  // data retries
	{8, 4},  // XChannel
	{3, 1},  // MCS
	{8, 4},  // A-MPDU status
	{12, 2}, // VHT
	{12, 8}, // timestamp
}

const radiotapFixedSize = 8 // version, pad, length, first present word

// RadioTap is the radiotap capture header. Fields live in a bit-keyed
// map of raw bytes; the present bitmap, the length and every
// alignment padding are recomputed on serialization, so inserting a
// field re-pads everything after it. Headers whose present bitmap
// carries bits this dissector does not know are preserved verbatim.
type RadioTap struct {
	pdu.Base
	fields map[int][]byte
	raw    []byte // opaque preserved header, nil in the normal case
}

// NewRadioTap builds an empty radiotap header.
func NewRadioTap() *RadioTap {
	return &RadioTap{fields: map[int][]byte{}}
}

// ParseRadioTap dissects the radiotap header and the 802.11 frame
// after it.
func ParseRadioTap(data []byte) (*RadioTap, error) {
	if len(data) < radiotapFixedSize {
		return nil, fmt.Errorf("%w: radiotap header", pdu.ErrMalformed)
	}
	if data[0] != 0 {
		return nil, fmt.Errorf("%w: radiotap version %d", pdu.ErrMalformed, data[0])
	}
	length := int(binary.LittleEndian.Uint16(data[2:]))
	if length < radiotapFixedSize || length > len(data) {
		return nil, fmt.Errorf("%w: radiotap length %d", pdu.ErrMalformed, length)
	}
	r := &RadioTap{fields: map[int][]byte{}}

	// Collect the present words (the high bit of each word extends the
	// bitmap by another one).
	var present []uint32
	off := 4
	for {
		if off+4 > length {
			return nil, fmt.Errorf("%w: radiotap present bitmap", pdu.ErrMalformed)
		}
		w := binary.LittleEndian.Uint32(data[off:])
		present = append(present, w)
		off += 4
		if w&0x80000000 == 0 {
			break
		}
	}

	known := len(present) == 1 && present[0]&^knownRadiotapMask() == 0
	if !known {
		// Unknown fields make the layout undecodable past them; keep
		// the whole header verbatim so serialization is byte-exact.
		r.raw = append([]byte{}, data[:length]...)
	} else {
		for bit := 0; bit < len(radiotapFieldInfo); bit++ {
			if present[0]&(1<<uint(bit)) == 0 {
				continue
			}
			info := radiotapFieldInfo[bit]
			off = alignUp(off, info.align)
			if off+info.size > length {
				return nil, fmt.Errorf("%w: radiotap field %d", pdu.ErrMalformed, bit)
			}
			r.fields[bit] = append([]byte{}, data[off:off+info.size]...)
			off += info.size
		}
	}

	rest := data[length:]
	if len(rest) > 0 {
		if inner, err := ParseDot11(rest); err == nil {
			pdu.Adopt(r, inner)
		} else {
			pdu.Adopt(r, pdu.NewRaw(rest))
		}
	}
	return r, nil
}

func knownRadiotapMask() uint32 {
	var m uint32
	for bit := range radiotapFieldInfo {
		m |= 1 << uint(bit)
	}
	return m
}

func alignUp(off, align int) int {
	return (off + align - 1) &^ (align - 1)
}

func (r *RadioTap) Type() pdu.Type { return pdu.TypeRadioTap }

func (r *RadioTap) HeaderSize() int {
	if r.raw != nil {
		return len(r.raw)
	}
	off := radiotapFixedSize
	for _, bit := range r.presentBits() {
		info := radiotapFieldInfo[bit]
		off = alignUp(off, info.align)
		off += info.size
	}
	return off
}

func (r *RadioTap) presentBits() []int {
	bits := make([]int, 0, len(r.fields))
	for bit := range r.fields {
		bits = append(bits, bit)
	}
	sort.Ints(bits)
	return bits
}

// Field returns the raw bytes of a present field.
func (r *RadioTap) Field(bit int) ([]byte, bool) {
	b, ok := r.fields[bit]
	return b, ok
}

// SetField stores a field's raw bytes. The value length must match
// the field's declared size; paddings of later fields are recomputed
// on the next serialization.
func (r *RadioTap) SetField(bit int, value []byte) error {
	if r.raw != nil {
		return fmt.Errorf("%w: radiotap header with unknown fields is immutable", pdu.ErrLogic)
	}
	if bit < 0 || bit >= len(radiotapFieldInfo) {
		return fmt.Errorf("%w: radiotap field bit %d", pdu.ErrInvalidArgument, bit)
	}
	if len(value) != radiotapFieldInfo[bit].size {
		return fmt.Errorf("%w: radiotap field %d wants %d bytes", pdu.ErrInvalidArgument, bit, radiotapFieldInfo[bit].size)
	}
	r.fields[bit] = append([]byte{}, value...)
	return nil
}

// RemoveField drops a field from the header.
func (r *RadioTap) RemoveField(bit int) { delete(r.fields, bit) }

// TSFT returns the 64-bit MAC timestamp.
func (r *RadioTap) TSFT() (uint64, bool) {
	b, ok := r.fields[RadioTapTSFT]
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// SetTSFT stores the MAC timestamp field.
func (r *RadioTap) SetTSFT(v uint64) error {
	return r.SetField(RadioTapTSFT, binary.LittleEndian.AppendUint64(nil, v))
}

// Flags returns the flags field.
func (r *RadioTap) Flags() (uint8, bool) {
	b, ok := r.fields[RadioTapFlags]
	if !ok {
		return 0, false
	}
	return b[0], true
}

// SetFlags stores the flags field.
func (r *RadioTap) SetFlags(v uint8) error { return r.SetField(RadioTapFlags, []byte{v}) }

// Rate returns the rate field in 500 kbps units.
func (r *RadioTap) Rate() (uint8, bool) {
	b, ok := r.fields[RadioTapRate]
	if !ok {
		return 0, false
	}
	return b[0], true
}

// SetRate stores the rate field.
func (r *RadioTap) SetRate(v uint8) error { return r.SetField(RadioTapRate, []byte{v}) }

// Channel returns the channel frequency (MHz) and flags.
func (r *RadioTap) Channel() (freq, flags uint16, ok bool) {
	b, present := r.fields[RadioTapChannel]
	if !present {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(b), binary.LittleEndian.Uint16(b[2:]), true
}

// SetChannel stores the channel field.
func (r *RadioTap) SetChannel(freq, flags uint16) error {
	b := binary.LittleEndian.AppendUint16(nil, freq)
	return r.SetField(RadioTapChannel, binary.LittleEndian.AppendUint16(b, flags))
}

// DBmSignal returns the antenna signal in dBm.
func (r *RadioTap) DBmSignal() (int8, bool) {
	b, ok := r.fields[RadioTapDBmSignal]
	if !ok {
		return 0, false
	}
	return int8(b[0]), true
}

// SetDBmSignal stores the antenna signal field.
func (r *RadioTap) SetDBmSignal(v int8) error { return r.SetField(RadioTapDBmSignal, []byte{uint8(v)}) }

// Antenna returns the antenna index.
func (r *RadioTap) Antenna() (uint8, bool) {
	b, ok := r.fields[RadioTapAntenna]
	if !ok {
		return 0, false
	}
	return b[0], true
}

// SetAntenna stores the antenna field.
func (r *RadioTap) SetAntenna(v uint8) error { return r.SetField(RadioTapAntenna, []byte{v}) }

func (r *RadioTap) Clone() pdu.PDU {
	c := &RadioTap{fields: map[int][]byte{}}
	for bit, v := range r.fields {
		c.fields[bit] = append([]byte{}, v...)
	}
	c.raw = append([]byte(nil), r.raw...)
	pdu.Adopt(c, r.CloneChild())
	return c
}

func (r *RadioTap) WriteHeader(buf []byte, total int) error {
	hdr := r.HeaderSize()
	if r.raw != nil {
		copy(buf[:hdr], r.raw)
		return nil
	}
	out := stream.NewOutput(buf[:hdr])
	out.WriteU8(0) // version
	out.WriteU8(0) // pad
	out.WriteU16LE(uint16(hdr))
	var present uint32
	for _, bit := range r.presentBits() {
		present |= 1 << uint(bit)
	}
	if err := out.WriteU32LE(present); err != nil {
		return err
	}
	off := radiotapFixedSize
	for _, bit := range r.presentBits() {
		info := radiotapFieldInfo[bit]
		if padded := alignUp(off, info.align); padded > off {
			if err := out.Fill(padded-off, 0); err != nil {
				return err
			}
			off = padded
		}
		if err := out.WriteBytes(r.fields[bit]); err != nil {
			return err
		}
		off += info.size
	}
	return nil
}

func init() {
	pdu.RegisterLinkType(DLTRadioTap, func(b []byte) (pdu.PDU, error) { return ParseRadioTap(b) })
}
