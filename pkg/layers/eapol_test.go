package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestEAPOLRSNRoundTrip(t *testing.T) {
	e := NewEAPOLRSN()
	e.KeyInfo = EAPOLKeyTypePairwise | EAPOLKeyACK
	e.KeyLength = 16
	e.ReplayCounter = 1
	for i := range e.Nonce {
		e.Nonce[i] = byte(i)
	}
	e.KeyData = []byte{0xDD, 0x02, 0x01, 0x02}

	wire, err := pdu.Serialize(e)
	require.NoError(t, err)
	require.Len(t, wire, 4+95+4)
	// Common header: version, EAPOL-Key, length of the body.
	assert.Equal(t, uint8(1), wire[0])
	assert.Equal(t, EAPOLTypeKey, wire[1])
	assert.Equal(t, uint16(99), uint16(wire[2])<<8|uint16(wire[3]))

	parsed, err := ParseEAPOL(wire)
	require.NoError(t, err)
	rsn, ok := parsed.(*EAPOLRSN)
	require.True(t, ok)
	assert.Equal(t, e.KeyInfo, rsn.KeyInfo)
	assert.Equal(t, e.Nonce, rsn.Nonce)
	assert.Equal(t, e.KeyData, rsn.KeyData)

	again, err := pdu.Serialize(rsn)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestEAPOLRSNUnknownTrailerPreserved(t *testing.T) {
	e := NewEAPOLRSN()
	wire, err := pdu.Serialize(e)
	require.NoError(t, err)

	// An unexplained trailing field survives as a raw tail.
	trailer := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	parsed, err := ParseEAPOLRSN(append(wire, trailer...))
	require.NoError(t, err)
	require.NotNil(t, parsed.Child())
	assert.Equal(t, trailer, parsed.Child().(*pdu.Raw).Payload())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, append(wire, trailer...), again)
}

func TestEAPOLRC4RoundTrip(t *testing.T) {
	e := NewEAPOLRC4()
	e.KeyLength = 5
	e.ReplayCounter = 42
	e.KeyFlag = true
	e.KeyIndex = 1
	e.Key = []byte{1, 2, 3, 4, 5}

	wire, err := pdu.Serialize(e)
	require.NoError(t, err)

	parsed, err := ParseEAPOL(wire)
	require.NoError(t, err)
	rc4, ok := parsed.(*EAPOLRC4)
	require.True(t, ok)
	assert.True(t, rc4.KeyFlag)
	assert.Equal(t, uint8(1), rc4.KeyIndex)
	assert.Equal(t, e.Key, rc4.Key)

	again, err := pdu.Serialize(rc4)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestEAPOLTooShort(t *testing.T) {
	_, err := ParseEAPOL([]byte{1, 3, 0, 0})
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
