package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

// bfdSHA1Fixture is a 52-byte control packet with a meticulous keyed
// SHA1 auth section (auth length 28, hash in bytes 32-51).
func bfdSHA1Fixture() []byte {
	out := make([]byte, 0, 52)
	out = append(out, 0x20)                   // version 1, diag 0
	out = append(out, 0xC4)                   // state Up, A bit
	out = append(out, 0x03, 0x34)             // detect mult 3, length 52
	out = append(out, 0x00, 0x00, 0x00, 0x01) // my discriminator
	out = append(out, 0x00, 0x00, 0x00, 0x02) // your discriminator
	out = append(out, 0x00, 0x0F, 0x42, 0x40) // desired min tx 1s
	out = append(out, 0x00, 0x0F, 0x42, 0x40) // required min rx
	out = append(out, 0x00, 0x00, 0x00, 0x00) // required min echo rx
	out = append(out, 0x05, 0x1C)             // auth: meticulous keyed sha1, len 28
	out = append(out, 0x01, 0x00)             // key id 1, reserved
	out = append(out, 0x00, 0x00, 0x00, 0x2A) // sequence 42
	for i := 0; i < 20; i++ {
		out = append(out, byte(0xA0+i))
	}
	return out
}

func TestBFDSHA1AuthParse(t *testing.T) {
	wire := bfdSHA1Fixture()
	require.Len(t, wire, 52)

	b, err := ParseBFD(wire)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), b.Version)
	assert.Equal(t, BFDStateUp, b.State)
	assert.Equal(t, uint8(3), b.DetectMult)
	assert.Equal(t, uint32(1), b.MyDiscriminator)
	assert.Equal(t, BFDAuthMeticulousSHA1, b.AuthType())

	seq, err := b.AuthSequence()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), seq)

	hash, err := b.AuthValue()
	require.NoError(t, err)
	assert.Equal(t, wire[32:52], hash)
}

func TestBFDRoundTrip(t *testing.T) {
	wire := bfdSHA1Fixture()
	b, err := ParseBFD(wire)
	require.NoError(t, err)

	again, err := pdu.Serialize(b)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestBFDAuthSetterTypeEnforcement(t *testing.T) {
	b := NewBFD()

	// No auth configured: password and digest setters refuse.
	assert.ErrorIs(t, b.SetPassword([]byte("secret")), pdu.ErrLogic)
	assert.ErrorIs(t, b.SetAuthValue(make([]byte, 16)), pdu.ErrLogic)

	require.NoError(t, b.SetAuthType(BFDAuthSimplePassword))
	require.NoError(t, b.SetPassword([]byte("secret")))
	_, err := b.AuthSequence()
	assert.ErrorIs(t, err, pdu.ErrLogic)

	// Size validation.
	assert.ErrorIs(t, b.SetPassword(nil), pdu.ErrInvalidArgument)
	assert.ErrorIs(t, b.SetPassword(make([]byte, 17)), pdu.ErrInvalidArgument)

	require.NoError(t, b.SetAuthType(BFDAuthKeyedMD5))
	assert.ErrorIs(t, b.SetAuthValue(make([]byte, 20)), pdu.ErrInvalidArgument)
	require.NoError(t, b.SetAuthValue(make([]byte, 16)))
	require.NoError(t, b.SetAuthSequence(9))
}

func TestBFDPasswordBuild(t *testing.T) {
	b := NewBFD()
	b.State = BFDStateDown
	b.MyDiscriminator = 0x11223344
	require.NoError(t, b.SetAuthType(BFDAuthSimplePassword))
	b.AuthKeyID = 2
	require.NoError(t, b.SetPassword([]byte("hunter2")))

	wire, err := pdu.Serialize(b)
	require.NoError(t, err)
	require.Len(t, wire, 24+3+7)
	assert.Equal(t, wire[3], uint8(len(wire))) // length field covers auth
	assert.Equal(t, uint8(BFDAuthSimplePassword), wire[24])
	assert.Equal(t, uint8(10), wire[25]) // auth length
	assert.Equal(t, []byte("hunter2"), wire[27:])

	parsed, err := ParseBFD(wire)
	require.NoError(t, err)
	pw, err := parsed.Password()
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), pw)
}

func TestBFDLengthMismatch(t *testing.T) {
	wire := bfdSHA1Fixture()
	wire[3] = 60 // length beyond the buffer
	_, err := ParseBFD(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)

	wire = bfdSHA1Fixture()
	wire[25] = 20 // auth length disagrees with the section
	_, err = ParseBFD(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
