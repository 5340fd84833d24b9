package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestInputReads(t *testing.T) {
	in := NewInput([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v8, err := in.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), v8)

	v16, err := in.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0203), v16)

	v16le, err := in.ReadU16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0504), v16le)

	assert.Equal(t, 3, in.Remaining())
	assert.True(t, in.CanRead(3))
	assert.False(t, in.CanRead(4))

	_, err = in.ReadU32()
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestInputSkipAndPeek(t *testing.T) {
	in := NewInput([]byte{1, 2, 3, 4})
	require.NoError(t, in.Skip(2))
	assert.Equal(t, []byte{3, 4}, in.Peek())
	assert.Equal(t, 2, in.Pos())
	assert.ErrorIs(t, in.Skip(3), pdu.ErrMalformed)
}

func TestOutputWrites(t *testing.T) {
	buf := make([]byte, 8)
	out := NewOutput(buf)
	require.NoError(t, out.WriteU16(0x0102))
	require.NoError(t, out.WriteU32LE(0x06050403))
	require.NoError(t, out.Fill(2, 0xFF))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0xFF, 0xFF}, buf)

	assert.ErrorIs(t, out.WriteU8(0), pdu.ErrSerialize)
}

func TestOutputBounds(t *testing.T) {
	out := NewOutput(make([]byte, 3))
	assert.ErrorIs(t, out.WriteU32(1), pdu.ErrSerialize)
	assert.ErrorIs(t, out.WriteBytes([]byte{1, 2, 3, 4}), pdu.ErrSerialize)
	require.NoError(t, out.Skip(3))
	assert.ErrorIs(t, out.Skip(1), pdu.ErrSerialize)
}
