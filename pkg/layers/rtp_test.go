package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

// rtpFixture is a 60-byte packet: padding set, 5 CSRCs, a 2-word
// extension, a 12-byte payload and 4 bytes of padding.
func rtpFixture() []byte {
	out := make([]byte, 0, 60)
	out = append(out, 0xB5)       // V=2 P=1 X=1 CC=5
	out = append(out, 0x60)       // M=0 PT=96
	out = append(out, 0x00, 0x2A) // seq 42
	out = append(out, 0x00, 0x00, 0x10, 0x00)
	out = append(out, 0xDE, 0xAD, 0xBE, 0xEF) // SSRC
	for i := 0; i < 5; i++ {                  // CSRC list
		out = append(out, 0x00, 0x00, 0x00, byte(i+1))
	}
	out = append(out, 0xAB, 0xCD, 0x00, 0x02) // extension: profile, 2 words
	out = append(out, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08)
	for i := 0; i < 12; i++ { // payload
		out = append(out, byte(0x40+i))
	}
	out = append(out, 0x00, 0x00, 0x00, 0x04) // padding, size byte last
	return out
}

func TestRTPParseSizes(t *testing.T) {
	wire := rtpFixture()
	require.Len(t, wire, 60)

	r, err := ParseRTP(wire)
	require.NoError(t, err)

	assert.Equal(t, 44, r.HeaderSize())
	assert.Equal(t, 4, r.TrailerSize())
	assert.Equal(t, 60, pdu.Size(r))
	assert.Equal(t, uint8(96), r.PayloadType)
	assert.Equal(t, uint16(42), r.Seq)
	assert.Equal(t, uint32(0xDEADBEEF), r.SSRC)
	assert.Len(t, r.CSRC, 5)
	require.NotNil(t, r.Extension)
	assert.Equal(t, uint16(0xABCD), r.Extension.Profile)
	assert.Len(t, r.Extension.Words, 2)

	payload := r.Child().(*pdu.Raw).Payload()
	assert.Len(t, payload, 12)
}

func TestRTPRoundTrip(t *testing.T) {
	wire := rtpFixture()
	r, err := ParseRTP(wire)
	require.NoError(t, err)

	again, err := pdu.Serialize(r)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestRTPBadPadding(t *testing.T) {
	wire := rtpFixture()
	wire[59] = 0 // padding size must be > 0
	_, err := ParseRTP(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)

	wire[59] = 200 // larger than the remaining bytes
	_, err = ParseRTP(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestRTPVersionRejected(t *testing.T) {
	wire := rtpFixture()
	wire[0] = 0x35 // version 0
	_, err := ParseRTP(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestRTPBuild(t *testing.T) {
	r := NewRTP(0)
	r.Marker = true
	r.Seq = 7
	r.Timestamp = 160
	r.SSRC = 0x01020304
	pdu.Adopt(r, pdu.NewRaw(make([]byte, 160)))

	wire, err := pdu.Serialize(r)
	require.NoError(t, err)
	require.Len(t, wire, 172)
	assert.Equal(t, uint8(0x80), wire[0]) // V=2, no padding/ext/CSRC
	assert.Equal(t, uint8(0x80), wire[1]) // marker set, PT 0

	parsed, err := ParseRTP(wire)
	require.NoError(t, err)
	assert.True(t, parsed.Marker)
	assert.Equal(t, uint16(7), parsed.Seq)
}
