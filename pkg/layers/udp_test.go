package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/pkg/pdu"
)

func TestUDPLengthAndChecksum(t *testing.T) {
	ip := NewIP(pdu.MustIP("192.168.1.1"), pdu.MustIP("192.168.1.2"))
	udp := NewUDP(5000, 5001)
	pdu.Stack(ip, udp, pdu.NewRaw([]byte{1, 2, 3, 4}))

	wire, err := pdu.Serialize(ip)
	require.NoError(t, err)
	datagram := wire[20:]
	require.Len(t, datagram, 12)
	assert.Equal(t, uint16(12), uint16(datagram[4])<<8|uint16(datagram[5]))

	acc := checksum.PseudoIPv4(ip.SrcAddr, ip.DstAddr, IPProtoUDP, len(datagram), 0)
	assert.Equal(t, uint16(0), checksum.Fold(checksum.Sum(datagram, acc)))
}

func TestUDPOverIPv6Checksum(t *testing.T) {
	ip6 := NewIPv6(pdu.MustIP("fe80::1"), pdu.MustIP("fe80::2"))
	udp := NewUDP(546, 547)
	pdu.Stack(ip6, udp, pdu.NewRaw([]byte{0xDE, 0xAD}))

	wire, err := pdu.Serialize(ip6)
	require.NoError(t, err)
	datagram := wire[40:]
	// IPv6 requires a computed checksum; it must not be zero.
	assert.NotEqual(t, []byte{0, 0}, datagram[6:8])

	acc := checksum.PseudoIPv6(ip6.SrcAddr, ip6.DstAddr, IPProtoUDP, len(datagram), 0)
	assert.Equal(t, uint16(0), checksum.Fold(checksum.Sum(datagram, acc)))
}

func TestUDPStandaloneChecksumZero(t *testing.T) {
	udp := NewUDP(53, 53)
	pdu.Adopt(udp, pdu.NewRaw([]byte{1}))
	wire, err := pdu.Serialize(udp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, wire[6:8])
}

func TestUDPRoundTrip(t *testing.T) {
	udp := NewUDP(53, 1053)
	pdu.Adopt(udp, pdu.NewRaw([]byte{9, 8, 7}))
	wire, err := pdu.Serialize(udp)
	require.NoError(t, err)

	parsed, err := ParseUDP(wire)
	require.NoError(t, err)
	assert.Equal(t, uint16(53), parsed.SrcPort)
	assert.Equal(t, uint16(1053), parsed.DstPort)
	assert.Equal(t, uint16(11), parsed.Length())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestUDPTooShort(t *testing.T) {
	_, err := ParseUDP(make([]byte, 7))
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
