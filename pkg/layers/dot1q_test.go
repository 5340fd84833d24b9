package layers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func qinqFrame(t *testing.T, outer pdu.PDU) []byte {
	t.Helper()
	eth := NewEthernetII(pdu.MustHW("ff:ff:ff:ff:ff:ff"), pdu.MustHW("02:00:00:00:00:01"))
	inner := NewDot1Q(200)
	ip := NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2"))
	pdu.Stack(eth, outer, inner, ip, pdu.NewRaw([]byte{1, 2, 3, 4}))
	wire, err := pdu.Serialize(eth)
	require.NoError(t, err)
	return wire
}

func TestDot1ADTree(t *testing.T) {
	wire := qinqFrame(t, NewDot1AD(100))

	// Outer TPID is 0x88a8, the inner tag's is 0x8100.
	assert.Equal(t, EtherTypeDot1AD, binary.BigEndian.Uint16(wire[12:14]))
	assert.Equal(t, EtherTypeDot1Q, binary.BigEndian.Uint16(wire[16:18]))

	parsed, err := ParseEthernetII(wire)
	require.NoError(t, err)

	ad, ok := pdu.Find[*Dot1AD](parsed)
	require.True(t, ok)
	assert.Equal(t, uint16(100), ad.VLANID)

	q, ok := pdu.Find[*Dot1Q](ad.Child())
	require.True(t, ok)
	assert.Equal(t, uint16(200), q.VLANID)

	_, ok = pdu.Find[*IP](parsed)
	require.True(t, ok)

	// A Dot1AD still matches the Dot1Q supertype.
	_, found := pdu.FindType(parsed, pdu.TypeDot1Q)
	assert.True(t, found)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestQinQOuterSwap(t *testing.T) {
	adWire := qinqFrame(t, NewDot1AD(100))
	qWire := qinqFrame(t, NewDot1Q(100))

	// Swapping the outer 802.1AD tag for an 802.1Q one yields the
	// plain Q-in-Q encoding: identical bytes except the outer TPID.
	assert.Equal(t, EtherTypeDot1Q, binary.BigEndian.Uint16(qWire[12:14]))
	assert.Equal(t, adWire[:12], qWire[:12])
	assert.Equal(t, adWire[14:], qWire[14:])
}

func TestDot1QPriorityBits(t *testing.T) {
	q := NewDot1Q(5)
	q.Priority = 6
	q.DEI = true
	pdu.Adopt(q, pdu.NewRaw([]byte{0}))

	wire, err := pdu.Serialize(q)
	require.NoError(t, err)
	tci := binary.BigEndian.Uint16(wire[0:2])
	assert.Equal(t, uint8(6), uint8(tci>>13))
	assert.True(t, tci&0x1000 != 0)
	assert.Equal(t, uint16(5), tci&0x0FFF)
}
