package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestIPv6BasicRoundTrip(t *testing.T) {
	ip6 := NewIPv6(pdu.MustIP("2001:db8::1"), pdu.MustIP("2001:db8::2"))
	ip6.TrafficClass = 0x0A
	ip6.FlowLabel = 0x12345
	pdu.Stack(ip6, NewUDP(1000, 2000), pdu.NewRaw([]byte{1, 2, 3}))

	wire, err := pdu.Serialize(ip6)
	require.NoError(t, err)
	require.Len(t, wire, 40+8+3)
	assert.Equal(t, uint8(6), wire[0]>>4)
	assert.Equal(t, IPProtoUDP, wire[6])
	assert.Equal(t, uint16(11), uint16(wire[4])<<8|uint16(wire[5]))

	parsed, err := ParseIPv6(wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0A), parsed.TrafficClass)
	assert.Equal(t, uint32(0x12345), parsed.FlowLabel)
	assert.Equal(t, pdu.TypeUDP, parsed.Child().Type())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestIPv6ExtensionChain(t *testing.T) {
	ip6 := NewIPv6(pdu.MustIP("fe80::1"), pdu.MustIP("fe80::2"))
	// A hop-by-hop header (PadN filler) and a destination options
	// header, then UDP.
	ip6.AddExtHeader(IPv6ExtHopByHop, []byte{1, 4, 0, 0, 0, 0})
	ip6.AddExtHeader(IPv6ExtDestOpts, []byte{1, 4, 0, 0, 0, 0})
	pdu.Stack(ip6, NewUDP(7, 8), pdu.NewRaw([]byte{0xFF}))

	wire, err := pdu.Serialize(ip6)
	require.NoError(t, err)

	// Fixed header chains to hop-by-hop, which chains to destination
	// options, which chains to UDP.
	assert.Equal(t, IPv6ExtHopByHop, wire[6])
	assert.Equal(t, IPv6ExtDestOpts, wire[40])
	assert.Equal(t, IPProtoUDP, wire[48])

	parsed, err := ParseIPv6(wire)
	require.NoError(t, err)
	require.Len(t, parsed.ExtHeaders, 2)
	assert.Equal(t, IPv6ExtHopByHop, parsed.ExtHeaders[0].Kind)
	assert.Equal(t, pdu.TypeUDP, parsed.Child().Type())
	assert.Equal(t, IPProtoUDP, parsed.NextHeader())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestIPv6NoNextHeader(t *testing.T) {
	ip6 := NewIPv6(pdu.MustIP("::1"), pdu.MustIP("::2"))
	wire, err := pdu.Serialize(ip6)
	require.NoError(t, err)
	assert.Equal(t, IPProtoNoNext, wire[6])

	parsed, err := ParseIPv6(wire)
	require.NoError(t, err)
	assert.Nil(t, parsed.Child())
}

func TestIPv6TooShort(t *testing.T) {
	_, err := ParseIPv6(make([]byte, 39))
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
