package pdu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackLinksParents(t *testing.T) {
	a := NewRaw([]byte{1})
	b := NewRaw([]byte{2})
	c := NewRaw([]byte{3})

	root := Stack(a, b, c)
	assert.Same(t, a, root)
	assert.Same(t, b, a.Child())
	assert.Same(t, c, b.Child())
	assert.Same(t, a, b.Parent().(*Raw))
	assert.Same(t, b, c.Parent().(*Raw))
	assert.Same(t, c, Tail(root))
}

func TestSizeAndSerialize(t *testing.T) {
	root := Stack(NewRaw([]byte{1, 2}), NewRaw([]byte{3, 4, 5}))
	assert.Equal(t, 5, Size(root))

	out, err := Serialize(root)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out)
	assert.Len(t, out, Size(root))
}

func TestCloneIsDeep(t *testing.T) {
	root := Stack(NewRaw([]byte{1, 2}), NewRaw([]byte{3}))
	clone := root.Clone().(*Raw)

	orig, err := Serialize(root)
	require.NoError(t, err)
	copied, err := Serialize(clone)
	require.NoError(t, err)
	assert.Equal(t, orig, copied)

	// Mutating the clone leaves the original untouched.
	clone.Child().(*Raw).SetPayload([]byte{9, 9})
	orig2, err := Serialize(root)
	require.NoError(t, err)
	assert.Equal(t, orig, orig2)
}

func TestMatchesFlagSupertypes(t *testing.T) {
	assert.True(t, MatchesFlag(TypeDot11Beacon, TypeDot11))
	assert.True(t, MatchesFlag(TypeDot11RTS, TypeDot11Control))
	assert.True(t, MatchesFlag(TypeDot11RTS, TypeDot11))
	assert.True(t, MatchesFlag(TypeDot1AD, TypeDot1Q))
	assert.False(t, MatchesFlag(TypeDot11, TypeDot11Beacon))
	assert.False(t, MatchesFlag(TypeTCP, TypeUDP))
}

func TestOptionsOrderAndDuplicates(t *testing.T) {
	var opts Options
	opts.Add(1, []byte{0xAA})
	opts.Add(5, []byte{0xBB})
	opts.Add(1, []byte{0xCC})

	assert.Len(t, opts, 3)
	first, ok := opts.Find(1)
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA}, first.Data)

	require.True(t, opts.RemoveFirst(1))
	first, ok = opts.Find(1)
	require.True(t, ok)
	assert.Equal(t, []byte{0xCC}, first.Data)

	assert.False(t, opts.RemoveFirst(42))
	assert.Equal(t, 2, opts.DataSize())
}

func TestHWAddressParse(t *testing.T) {
	a, err := ParseHW("7a:1f:f4:39:ab:0d")
	require.NoError(t, err)
	assert.Equal(t, "7a:1f:f4:39:ab:0d", a.String())
	assert.True(t, a.IsUnicast())
	assert.True(t, BroadcastHW.IsBroadcast())

	_, err = ParseHW("7a:1f:f4:39:ab")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParseHW("7a:1f:f4:39:ab:zz")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	a8, err := ParseHW8("01:02:03:04:05:06:07:08")
	require.NoError(t, err)
	assert.Equal(t, "01:02:03:04:05:06:07:08", a8.String())
}

func TestIPv4Parse(t *testing.T) {
	a, err := ParseIPv4("192.168.0.1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xC0A80001), IPv4ToUint32(a))
	assert.Equal(t, a, Uint32ToIPv4(0xC0A80001))

	_, err = ParseIPv4("192.168.0.256")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParseIPv4("192.168.0")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParseIPv4("::1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseIPv6("fe80::1")
	require.NoError(t, err)
	_, err = ParseIPv6("10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegistryFallback(t *testing.T) {
	// Unregistered values wrap the remainder in Raw.
	p := InnerFromEtherType(0xFFFF, []byte{1, 2, 3})
	raw, ok := p.(*Raw)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, raw.Payload())

	assert.Nil(t, InnerFromEtherType(0xFFFF, nil))

	_, err := FromLinkType(9999, []byte{1})
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestPacketClone(t *testing.T) {
	p := NewPacket(NewRaw([]byte{1, 2, 3}), testTime())
	c := p.Clone()
	assert.Equal(t, p.Timestamp(), c.Timestamp())

	b1, err := p.Serialize()
	require.NoError(t, err)
	b2, err := c.Serialize()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func testTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 123456000, time.UTC)
}
