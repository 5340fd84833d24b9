package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/internal/checksum"
	"firestige.xyz/strix/pkg/pdu"
)

func TestICMPEchoChecksumVerifies(t *testing.T) {
	echo := NewICMPEcho(0x34AB, 0x12F7)
	wire, err := pdu.Serialize(echo)
	require.NoError(t, err)
	require.Len(t, wire, 8)

	assert.Equal(t, uint8(ICMPEchoRequest), wire[0])
	assert.Equal(t, []byte{0x34, 0xAB}, wire[4:6])
	assert.Equal(t, []byte{0x12, 0xF7}, wire[6:8])
	// Recomputing the 16-bit checksum over the whole message verifies.
	assert.True(t, checksum.Verify(wire))
}

func TestICMPEchoRoundTrip(t *testing.T) {
	echo := NewICMPEcho(7, 9)
	pdu.Adopt(echo, pdu.NewRaw([]byte("payload")))
	wire, err := pdu.Serialize(echo)
	require.NoError(t, err)

	parsed, err := ParseICMP(wire)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), parsed.ID)
	assert.Equal(t, uint16(9), parsed.Seq)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
	assert.True(t, checksum.Verify(again))
}

func TestICMPDestUnreachableWithExtensions(t *testing.T) {
	ic := NewICMP(ICMPDestUnreachable)
	ic.Code = 3
	// 32-byte excerpt of the offending datagram.
	excerpt := make([]byte, 32)
	for i := range excerpt {
		excerpt[i] = byte(i)
	}
	pdu.Adopt(ic, pdu.NewRaw(excerpt))
	ic.Extensions.Objects = append(ic.Extensions.Objects, ICMPExtensionObject{
		Class: 1, CType: 1, Payload: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	})

	wire, err := pdu.Serialize(ic)
	require.NoError(t, err)
	// 8 header + 32 excerpt + 4 ext header + 8 object.
	require.Len(t, wire, 52)
	assert.Equal(t, uint8(8), wire[5]) // RFC 4884 length in 32-bit words
	assert.True(t, checksum.Verify(wire))

	parsed, err := ParseICMP(wire)
	require.NoError(t, err)
	require.True(t, parsed.Extensions.HasExtensions())
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, parsed.Extensions.Objects[0].Payload)
	assert.Equal(t, excerpt, parsed.Child().(*pdu.Raw).Payload())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestICMPMatchesResponse(t *testing.T) {
	req := NewICMPEcho(0x34AB, 0x12F7)
	reply := NewICMP(ICMPEchoReply)
	reply.ID = 0x34AB
	reply.Seq = 0x12F7
	wire, err := pdu.Serialize(reply)
	require.NoError(t, err)
	assert.True(t, req.MatchesResponse(wire))

	reply.Seq = 1
	wire, err = pdu.Serialize(reply)
	require.NoError(t, err)
	assert.False(t, req.MatchesResponse(wire))
}

func TestICMPv6EchoChecksum(t *testing.T) {
	ip6 := NewIPv6(pdu.MustIP("fe80::1"), pdu.MustIP("fe80::2"))
	echo := NewICMPv6Echo(1, 2)
	pdu.Stack(ip6, echo, pdu.NewRaw([]byte{1, 2, 3}))

	wire, err := pdu.Serialize(ip6)
	require.NoError(t, err)
	body := wire[40:]
	acc := checksum.PseudoIPv6(ip6.SrcAddr, ip6.DstAddr, IPProtoICMPv6, len(body), 0)
	assert.Equal(t, uint16(0), checksum.Fold(checksum.Sum(body, acc)))
	assert.Equal(t, IPProtoICMPv6, wire[6]) // next header inferred
}

func TestICMPv6RoundTrip(t *testing.T) {
	tooBig := NewICMPv6(ICMPv6PacketTooBig)
	tooBig.MTU = 1280
	pdu.Adopt(tooBig, pdu.NewRaw([]byte{0xAA}))
	wire, err := pdu.Serialize(tooBig)
	require.NoError(t, err)

	parsed, err := ParseICMPv6(wire)
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), parsed.MTU)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}
