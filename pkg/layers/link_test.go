package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestSLL2Dispatch(t *testing.T) {
	s := NewSLL2()
	s.IfIndex = 3
	addr, err := pdu.ParseHW8("02:00:00:00:00:01:00:00")
	require.NoError(t, err)
	s.LLAddr = addr
	pdu.Stack(s, NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2")),
		NewUDP(5, 6), pdu.NewRaw([]byte{1}))

	wire, err := pdu.Serialize(s)
	require.NoError(t, err)
	assert.Equal(t, EtherTypeIP, uint16(wire[0])<<8|uint16(wire[1]))

	root, err := pdu.FromLinkType(DLTSLL2, wire)
	require.NoError(t, err)
	parsed := root.(*SLL2)
	assert.Equal(t, uint32(3), parsed.IfIndex)
	assert.Equal(t, pdu.TypeIP, parsed.Child().Type())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestSLLRoundTrip(t *testing.T) {
	s := NewSLL()
	s.PacketType = 4 // outgoing
	pdu.Stack(s, NewARPRequest(pdu.MustHW("02:00:00:00:00:01"),
		pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2")))

	wire, err := pdu.Serialize(s)
	require.NoError(t, err)
	require.Len(t, wire, 16+28)

	parsed, err := ParseSLL(wire)
	require.NoError(t, err)
	assert.Equal(t, pdu.TypeARP, parsed.Child().Type())
}

func TestLLCSNAPSTP(t *testing.T) {
	llc := NewLLC(LLCSapSTP, LLCSapSTP)
	stp := NewSTP()
	stp.RootID = STPBridgeID{Priority: 8, Extension: 1, Addr: pdu.MustHW("02:00:00:00:00:aa")}
	stp.BridgeID = STPBridgeID{Priority: 8, Extension: 1, Addr: pdu.MustHW("02:00:00:00:00:bb")}
	stp.PortID = 0x8001
	stp.HelloTime = 2 << 8 // 1/256 s units
	pdu.Stack(llc, stp)

	wire, err := pdu.Serialize(llc)
	require.NoError(t, err)
	require.Len(t, wire, 3+35)

	parsed, err := ParseLLC(wire)
	require.NoError(t, err)
	mod, err := parsed.Modifier()
	require.NoError(t, err)
	assert.Equal(t, LLCControlUI, mod)

	got, ok := pdu.Find[*STP](parsed)
	require.True(t, ok)
	assert.Equal(t, uint8(8), got.RootID.Priority)
	assert.Equal(t, uint16(1), got.RootID.Extension)
	assert.Equal(t, pdu.MustHW("02:00:00:00:00:bb"), got.BridgeID.Addr)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestSTPTCN(t *testing.T) {
	s := NewSTP()
	s.BPDUType = STPTypeTCN
	wire, err := pdu.Serialize(s)
	require.NoError(t, err)
	require.Len(t, wire, 4)

	parsed, err := ParseSTP(wire)
	require.NoError(t, err)
	assert.Equal(t, STPTypeTCN, parsed.BPDUType)
}

func TestMPLSStack(t *testing.T) {
	outer := NewMPLS(100)
	inner := NewMPLS(200)
	ip := NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2"))
	pdu.Stack(outer, inner, ip, pdu.NewRaw([]byte{1}))

	wire, err := pdu.Serialize(outer)
	require.NoError(t, err)
	// Outer entry loses its bottom bit, the inner keeps it.
	assert.Equal(t, uint8(0), wire[2]&0x01)
	assert.Equal(t, uint8(1), wire[6]&0x01)

	parsed, err := ParseMPLS(wire)
	require.NoError(t, err)
	assert.False(t, parsed.BottomOfStack)
	second := parsed.Child().(*MPLS)
	assert.True(t, second.BottomOfStack)
	assert.Equal(t, pdu.TypeIP, second.Child().Type())
}

func TestVXLANRoundTrip(t *testing.T) {
	v := NewVXLAN(0x123456)
	eth := NewEthernetII(pdu.MustHW("ff:ff:ff:ff:ff:ff"), pdu.MustHW("02:00:00:00:00:01"))
	pdu.Stack(v, eth, NewARPRequest(pdu.MustHW("02:00:00:00:00:01"),
		pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2")))

	wire, err := pdu.Serialize(v)
	require.NoError(t, err)
	assert.Equal(t, uint8(vxlanFlagVNI), wire[0])
	assert.Equal(t, []byte{0x12, 0x34, 0x56}, wire[4:7])

	parsed, err := ParseVXLAN(wire)
	require.NoError(t, err)
	assert.True(t, parsed.VNIValid)
	assert.Equal(t, uint32(0x123456), parsed.VNI)
	assert.Equal(t, pdu.TypeEthernetII, parsed.Child().Type())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestPPPoEDiscovery(t *testing.T) {
	p := NewPPPoE(PPPoECodePADI)
	p.Tags.Add(PPPoETagServiceName, nil)
	p.Tags.Add(PPPoETagHostUniq, []byte{0xDE, 0xAD})

	wire, err := pdu.Serialize(p)
	require.NoError(t, err)
	require.Len(t, wire, 6+4+6)

	parsed, err := ParsePPPoE(wire)
	require.NoError(t, err)
	assert.Equal(t, PPPoECodePADI, parsed.Code)
	uniq, ok := parsed.Tags.Find(PPPoETagHostUniq)
	require.True(t, ok)
	assert.Equal(t, []byte{0xDE, 0xAD}, uniq.Data)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestLoopbackFamilies(t *testing.T) {
	l := NewLoopback()
	pdu.Stack(l, NewIP(pdu.MustIP("127.0.0.1"), pdu.MustIP("127.0.0.2")), pdu.NewRaw([]byte{9}))
	wire, err := pdu.Serialize(l)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, wire[:4])

	root, err := pdu.FromLinkType(DLTNull, wire)
	require.NoError(t, err)
	parsed := root.(*Loopback)
	assert.Equal(t, LoopbackFamilyInet, parsed.Family)
	assert.Equal(t, pdu.TypeIP, parsed.Child().Type())

	// Opposite-endian capture hosts are accepted too.
	be := append([]byte{0, 0, 0, 2}, wire[4:]...)
	parsed2, err := ParseLoopback(be)
	require.NoError(t, err)
	assert.Equal(t, LoopbackFamilyInet, parsed2.Family)
}
