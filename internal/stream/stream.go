// Package stream provides bounds-checked cursors over packet buffers.
//
// Input reads from an immutable byte slice, Output writes into a
// pre-sized one. Both track a position and fail instead of panicking
// when the buffer is exhausted, so dissectors can surface truncated
// captures as errors.
package stream

import (
	"encoding/binary"

	"firestige.xyz/strix/pkg/pdu"
)

// Input is a read cursor over an immutable byte slice.
type Input struct {
	data []byte
	pos  int
}

// NewInput creates an Input positioned at the start of data.
func NewInput(data []byte) *Input {
	return &Input{data: data}
}

// Remaining returns the number of unread bytes.
func (in *Input) Remaining() int { return len(in.data) - in.pos }

// CanRead reports whether n more bytes are available.
func (in *Input) CanRead(n int) bool { return in.Remaining() >= n }

// Pos returns the current read offset.
func (in *Input) Pos() int { return in.pos }

// Peek returns the unread remainder without consuming it.
func (in *Input) Peek() []byte { return in.data[in.pos:] }

// Skip advances the cursor by n bytes.
func (in *Input) Skip(n int) error {
	if !in.CanRead(n) {
		return pdu.ErrMalformed
	}
	in.pos += n
	return nil
}

// ReadBytes consumes and returns the next n bytes. The returned slice
// aliases the underlying buffer.
func (in *Input) ReadBytes(n int) ([]byte, error) {
	if !in.CanRead(n) {
		return nil, pdu.ErrMalformed
	}
	b := in.data[in.pos : in.pos+n]
	in.pos += n
	return b, nil
}

// ReadU8 consumes one byte.
func (in *Input) ReadU8() (uint8, error) {
	if !in.CanRead(1) {
		return 0, pdu.ErrMalformed
	}
	v := in.data[in.pos]
	in.pos++
	return v, nil
}

// ReadU16 consumes a big-endian 16-bit value.
func (in *Input) ReadU16() (uint16, error) {
	b, err := in.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32 consumes a big-endian 32-bit value.
func (in *Input) ReadU32() (uint32, error) {
	b, err := in.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64 consumes a big-endian 64-bit value.
func (in *Input) ReadU64() (uint64, error) {
	b, err := in.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadU16LE consumes a little-endian 16-bit value (RadioTap and parts
// of 802.11 are little-endian on the wire).
func (in *Input) ReadU16LE() (uint16, error) {
	b, err := in.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32LE consumes a little-endian 32-bit value.
func (in *Input) ReadU32LE() (uint32, error) {
	b, err := in.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64LE consumes a little-endian 64-bit value.
func (in *Input) ReadU64LE() (uint64, error) {
	b, err := in.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Output is a write cursor over a fixed-size byte slice.
type Output struct {
	data []byte
	pos  int
}

// NewOutput creates an Output positioned at the start of data.
func NewOutput(data []byte) *Output {
	return &Output{data: data}
}

// Remaining returns the number of writable bytes left.
func (out *Output) Remaining() int { return len(out.data) - out.pos }

// Pos returns the current write offset.
func (out *Output) Pos() int { return out.pos }

// Skip advances the cursor by n bytes, leaving the bytes untouched.
func (out *Output) Skip(n int) error {
	if out.Remaining() < n {
		return pdu.ErrSerialize
	}
	out.pos += n
	return nil
}

// Fill writes n copies of b.
func (out *Output) Fill(n int, b byte) error {
	if out.Remaining() < n {
		return pdu.ErrSerialize
	}
	for i := 0; i < n; i++ {
		out.data[out.pos+i] = b
	}
	out.pos += n
	return nil
}

// WriteBytes appends b at the cursor.
func (out *Output) WriteBytes(b []byte) error {
	if out.Remaining() < len(b) {
		return pdu.ErrSerialize
	}
	copy(out.data[out.pos:], b)
	out.pos += len(b)
	return nil
}

// WriteU8 appends one byte.
func (out *Output) WriteU8(v uint8) error {
	if out.Remaining() < 1 {
		return pdu.ErrSerialize
	}
	out.data[out.pos] = v
	out.pos++
	return nil
}

// WriteU16 appends a big-endian 16-bit value.
func (out *Output) WriteU16(v uint16) error {
	if out.Remaining() < 2 {
		return pdu.ErrSerialize
	}
	binary.BigEndian.PutUint16(out.data[out.pos:], v)
	out.pos += 2
	return nil
}

// WriteU32 appends a big-endian 32-bit value.
func (out *Output) WriteU32(v uint32) error {
	if out.Remaining() < 4 {
		return pdu.ErrSerialize
	}
	binary.BigEndian.PutUint32(out.data[out.pos:], v)
	out.pos += 4
	return nil
}

// WriteU64 appends a big-endian 64-bit value.
func (out *Output) WriteU64(v uint64) error {
	if out.Remaining() < 8 {
		return pdu.ErrSerialize
	}
	binary.BigEndian.PutUint64(out.data[out.pos:], v)
	out.pos += 8
	return nil
}

// WriteU16LE appends a little-endian 16-bit value.
func (out *Output) WriteU16LE(v uint16) error {
	if out.Remaining() < 2 {
		return pdu.ErrSerialize
	}
	binary.LittleEndian.PutUint16(out.data[out.pos:], v)
	out.pos += 2
	return nil
}

// WriteU32LE appends a little-endian 32-bit value.
func (out *Output) WriteU32LE(v uint32) error {
	if out.Remaining() < 4 {
		return pdu.ErrSerialize
	}
	binary.LittleEndian.PutUint32(out.data[out.pos:], v)
	out.pos += 4
	return nil
}

// WriteU64LE appends a little-endian 64-bit value.
func (out *Output) WriteU64LE(v uint64) error {
	if out.Remaining() < 8 {
		return pdu.ErrSerialize
	}
	binary.LittleEndian.PutUint64(out.data[out.pos:], v)
	out.pos += 8
	return nil
}
