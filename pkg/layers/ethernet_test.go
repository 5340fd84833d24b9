package layers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestARPReplyBuild(t *testing.T) {
	senderHW := pdu.MustHW("7a:1f:f4:39:ab:0d")
	targetHW := pdu.MustHW("13:da:de:f1:01:85")

	eth := NewEthernetII(targetHW, senderHW)
	arp := NewARPReply(senderHW, targetHW, pdu.MustIP("192.168.0.100"), pdu.MustIP("192.168.0.1"))
	frame := pdu.Stack(eth, arp)

	out, err := pdu.Serialize(frame)
	require.NoError(t, err)
	require.Len(t, out, 42)

	// Ethernet header: dst, src, then the Ethertype resolved from the
	// ARP child.
	assert.Equal(t, targetHW[:], out[0:6])
	assert.Equal(t, senderHW[:], out[6:12])
	assert.Equal(t, EtherTypeARP, binary.BigEndian.Uint16(out[12:14]))

	// ARP body: hardware type 1, opcode REPLY at bytes 20-21.
	assert.Equal(t, uint16(0x0001), binary.BigEndian.Uint16(out[14:16]))
	assert.Equal(t, uint16(0x0002), binary.BigEndian.Uint16(out[20:22]))
	assert.Equal(t, []byte{192, 168, 0, 100}, out[28:32])
	assert.Equal(t, []byte{192, 168, 0, 1}, out[38:42])
}

func TestEthernetRoundTrip(t *testing.T) {
	senderHW := pdu.MustHW("7a:1f:f4:39:ab:0d")
	targetHW := pdu.MustHW("13:da:de:f1:01:85")
	frame := pdu.Stack(
		NewEthernetII(targetHW, senderHW),
		NewARPRequest(senderHW, pdu.MustIP("192.168.0.100"), pdu.MustIP("192.168.0.1")),
	)
	wire, err := pdu.Serialize(frame)
	require.NoError(t, err)

	parsed, err := ParseEthernetII(wire)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeARP, parsed.Child().Type())
	assert.Same(t, pdu.PDU(parsed), parsed.Child().Parent())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestEthernetPayloadTypeOverride(t *testing.T) {
	eth := NewEthernetII(pdu.BroadcastHW, pdu.MustHW("02:00:00:00:00:01"))
	pdu.Adopt(eth, pdu.NewRaw([]byte{0xDE, 0xAD}))
	eth.SetPayloadType(0x1234)

	out, err := pdu.Serialize(eth)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), binary.BigEndian.Uint16(out[12:14]))
}

func TestEthernetTooShort(t *testing.T) {
	_, err := ParseEthernetII(make([]byte, 13))
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestARPMatchesResponse(t *testing.T) {
	senderHW := pdu.MustHW("7a:1f:f4:39:ab:0d")
	req := NewARPRequest(senderHW, pdu.MustIP("192.168.0.100"), pdu.MustIP("192.168.0.1"))

	reply := NewARPReply(pdu.MustHW("13:da:de:f1:01:85"), senderHW,
		pdu.MustIP("192.168.0.1"), pdu.MustIP("192.168.0.100"))
	wire, err := pdu.Serialize(reply)
	require.NoError(t, err)
	assert.True(t, req.MatchesResponse(wire))

	// A request is not a response to itself.
	wire, err = pdu.Serialize(req)
	require.NoError(t, err)
	assert.False(t, req.MatchesResponse(wire))
}
