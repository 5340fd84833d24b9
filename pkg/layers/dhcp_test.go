package layers

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func netipAddrs(ss ...string) []netip.Addr {
	out := make([]netip.Addr, len(ss))
	for i, s := range ss {
		out[i] = pdu.MustIP(s)
	}
	return out
}

func discoverMessage() *DHCP {
	d := NewDHCP()
	d.XID = 0x3903F326
	hw := pdu.MustHW("02:00:00:00:00:01")
	copy(d.CHAddr[:6], hw[:])
	d.SetMessageType(DHCPDiscover)
	d.SetRequestedIP(pdu.MustIP("192.168.1.100"))
	d.SetServerID(pdu.MustIP("192.168.1.1"))
	return d
}

func TestDHCPDiscoverParse(t *testing.T) {
	wire, err := pdu.Serialize(discoverMessage())
	require.NoError(t, err)
	// 236 BOOTP + 4 cookie + 3 + 6 + 6 options + 1 END.
	require.Len(t, wire, 256)

	d, err := ParseDHCP(wire)
	require.NoError(t, err)

	mt, ok := d.MessageType()
	require.True(t, ok)
	assert.Equal(t, DHCPDiscover, mt)

	req, ok := d.RequestedIP()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.100", req.String())

	sid, ok := d.ServerID()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.1", sid.String())

	again, err := pdu.Serialize(d)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPEndOptionIs255(t *testing.T) {
	wire, err := pdu.Serialize(discoverMessage())
	require.NoError(t, err)
	assert.Equal(t, uint8(255), wire[len(wire)-1])
}

func TestDHCPPaddingSurvivesRoundTrip(t *testing.T) {
	wire, err := pdu.Serialize(discoverMessage())
	require.NoError(t, err)
	// Minimum-size padding after END.
	padded := append(wire, make([]byte, 300-len(wire))...)

	d, err := ParseDHCP(padded)
	require.NoError(t, err)
	again, err := pdu.Serialize(d)
	require.NoError(t, err)
	assert.Equal(t, padded, again)
}

func TestDHCPBadCookie(t *testing.T) {
	wire, err := pdu.Serialize(discoverMessage())
	require.NoError(t, err)
	wire[236] = 0x00
	_, err = ParseDHCP(wire)
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestDHCPTypedOptions(t *testing.T) {
	d := NewDHCP()
	d.Opcode = BootReply
	d.SetMessageType(DHCPOffer)
	d.SetSubnetMask(pdu.MustIP("255.255.255.0"))
	d.SetRouters(netipAddrs("192.168.1.1", "192.168.1.2"))
	d.SetDNSServers(netipAddrs("8.8.8.8"))
	d.SetLeaseTime(86400)
	d.SetRenewalTime(43200)
	d.SetRebindTime(75600)
	d.SetBroadcast(pdu.MustIP("192.168.1.255"))
	d.SetDomainName("example.internal")

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	parsed, err := ParseDHCP(wire)
	require.NoError(t, err)

	mask, ok := parsed.SubnetMask()
	require.True(t, ok)
	assert.Equal(t, "255.255.255.0", mask.String())

	routers, ok := parsed.Routers()
	require.True(t, ok)
	require.Len(t, routers, 2)
	assert.Equal(t, "192.168.1.2", routers[1].String())

	lease, ok := parsed.LeaseTime()
	require.True(t, ok)
	assert.Equal(t, uint32(86400), lease)

	renewal, ok := parsed.RenewalTime()
	require.True(t, ok)
	assert.Equal(t, uint32(43200), renewal)

	name, ok := parsed.DomainName()
	require.True(t, ok)
	assert.Equal(t, "example.internal", name)
}
