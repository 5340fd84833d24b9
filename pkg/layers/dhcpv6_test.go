package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestDHCPv6SolicitRoundTrip(t *testing.T) {
	d := NewDHCPv6(DHCPv6Solicit)
	d.TransactionID = 0xABCDEF
	d.SetClientID(NewDUIDLL(pdu.MustHW("02:00:00:00:00:01")))
	d.SetOptionRequest([]uint16{23, 24}) // DNS servers, domain list
	d.SetElapsedTime(100)
	d.SetRapidCommit()

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	assert.Equal(t, DHCPv6Solicit, wire[0])
	assert.Equal(t, []byte{0xAB, 0xCD, 0xEF}, wire[1:4])

	parsed, err := ParseDHCPv6(wire)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCDEF), parsed.TransactionID)

	duid, ok := parsed.ClientID()
	require.True(t, ok)
	assert.Equal(t, DUIDLL, duid.DType)

	oro, ok := parsed.OptionRequest()
	require.True(t, ok)
	assert.Len(t, oro, 2)

	elapsed, ok := parsed.ElapsedTime()
	require.True(t, ok)
	assert.Equal(t, uint16(100), elapsed)
	assert.True(t, parsed.RapidCommit())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPv6RelayRoundTrip(t *testing.T) {
	inner := NewDHCPv6(DHCPv6Solicit)
	inner.TransactionID = 1
	inner.SetElapsedTime(0)

	relay := NewDHCPv6(DHCPv6RelayForw)
	relay.HopCount = 1
	relay.LinkAddr = pdu.MustIP("fe80::1")
	relay.PeerAddr = pdu.MustIP("fe80::2")
	require.NoError(t, relay.SetRelayMessage(inner))
	relay.SetInterfaceID([]byte("eth0"))

	wire, err := pdu.Serialize(relay)
	require.NoError(t, err)

	parsed, err := ParseDHCPv6(wire)
	require.NoError(t, err)
	assert.True(t, parsed.IsRelay())
	assert.Equal(t, uint8(1), parsed.HopCount)
	assert.Equal(t, "fe80::1", parsed.LinkAddr.String())

	msg, ok := parsed.RelayMessage()
	require.True(t, ok)
	assert.Equal(t, DHCPv6Solicit, msg.MsgType)
	assert.Equal(t, uint32(1), msg.TransactionID)

	ifid, ok := parsed.InterfaceID()
	require.True(t, ok)
	assert.Equal(t, []byte("eth0"), ifid)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPv6DUIDVariants(t *testing.T) {
	llt := NewDUIDLLT(pdu.MustHW("02:00:00:00:00:01"), 0x12345678)
	assert.Equal(t, DUIDLLT, llt.DType)
	assert.Len(t, llt.Data, 12)

	en := NewDUIDEN(9, []byte{1, 2, 3})
	assert.Equal(t, DUIDEN, en.DType)
	assert.Len(t, en.Data, 7)

	d := NewDHCPv6(DHCPv6Request)
	d.SetServerID(en)
	got, ok := d.ServerID()
	require.True(t, ok)
	assert.Equal(t, en.DType, got.DType)
	assert.Equal(t, en.Data, got.Data)
}

func TestDHCPv6AddressAssociations(t *testing.T) {
	// The IA address rides inside the IA_NA as a framed sub-option,
	// the way servers answer a Request.
	addr := DHCPv6IAAddr{
		Addr:              pdu.MustIP("2001:db8::1"),
		PreferredLifetime: 3600,
		ValidLifetime:     7200,
	}
	carrier := NewDHCPv6(DHCPv6Reply)
	carrier.SetIAAddr(addr)
	sub, ok := carrier.Options.Find(DHCPv6OptIAAddr)
	require.True(t, ok)
	framed := []byte{0, byte(DHCPv6OptIAAddr), 0, byte(len(sub.Data))}
	framed = append(framed, sub.Data...)

	d := NewDHCPv6(DHCPv6Reply)
	d.SetIANA(DHCPv6IANA{IAID: 1, T1: 1800, T2: 2880, Options: framed})
	d.SetIATA(DHCPv6IATA{IAID: 2})

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	parsed, err := ParseDHCPv6(wire)
	require.NoError(t, err)

	iana, ok := parsed.IANA()
	require.True(t, ok)
	assert.Equal(t, uint32(1), iana.IAID)
	assert.Equal(t, uint32(1800), iana.T1)
	assert.Equal(t, uint32(2880), iana.T2)
	assert.Equal(t, framed, iana.Options)

	iata, ok := parsed.IATA()
	require.True(t, ok)
	assert.Equal(t, uint32(2), iata.IAID)
	assert.Empty(t, iata.Options)

	got, ok := carrier.IAAddr()
	require.True(t, ok)
	assert.Equal(t, addr.Addr, got.Addr)
	assert.Equal(t, uint32(3600), got.PreferredLifetime)
	assert.Equal(t, uint32(7200), got.ValidLifetime)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPv6AuthAndUnicast(t *testing.T) {
	d := NewDHCPv6(DHCPv6Reply)
	d.SetAuthentication(DHCPv6Auth{
		Protocol:        3, // reconfigure key
		Algorithm:       1,
		ReplayDetection: 0x0102030405060708,
		AuthInfo:        []byte{0xAA, 0xBB, 0xCC},
	})
	d.SetServerUnicast(pdu.MustIP("2001:db8::53"))

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	parsed, err := ParseDHCPv6(wire)
	require.NoError(t, err)

	auth, ok := parsed.Authentication()
	require.True(t, ok)
	assert.Equal(t, uint8(3), auth.Protocol)
	assert.Equal(t, uint8(1), auth.Algorithm)
	assert.Equal(t, uint8(0), auth.RDM)
	assert.Equal(t, uint64(0x0102030405060708), auth.ReplayDetection)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, auth.AuthInfo)

	ua, ok := parsed.ServerUnicast()
	require.True(t, ok)
	assert.Equal(t, "2001:db8::53", ua.String())

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPv6ClassOptions(t *testing.T) {
	d := NewDHCPv6(DHCPv6Solicit)
	d.SetUserClass([][]byte{[]byte("accounting"), []byte("lab")})
	d.SetVendorClass(DHCPv6VendorClass{
		EnterpriseNumber: 311,
		Data:             [][]byte{[]byte("MSFT 5.0")},
	})
	d.SetVendorInfo(DHCPv6VendorInfo{
		EnterpriseNumber: 9,
		Data:             []byte{0x00, 0x01, 0x00, 0x02, 0xCA, 0xFE},
	})

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	parsed, err := ParseDHCPv6(wire)
	require.NoError(t, err)

	uc, ok := parsed.UserClass()
	require.True(t, ok)
	require.Len(t, uc, 2)
	assert.Equal(t, []byte("accounting"), uc[0])
	assert.Equal(t, []byte("lab"), uc[1])

	vc, ok := parsed.VendorClass()
	require.True(t, ok)
	assert.Equal(t, uint32(311), vc.EnterpriseNumber)
	require.Len(t, vc.Data, 1)
	assert.Equal(t, []byte("MSFT 5.0"), vc.Data[0])

	vi, ok := parsed.VendorInfo()
	require.True(t, ok)
	assert.Equal(t, uint32(9), vi.EnterpriseNumber)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02, 0xCA, 0xFE}, vi.Data)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDHCPv6StatusCode(t *testing.T) {
	d := NewDHCPv6(DHCPv6Reply)
	d.SetStatusCode(0, "Success")
	sc, ok := d.StatusCode()
	require.True(t, ok)
	assert.Equal(t, uint16(0), sc.Code)
	assert.Equal(t, "Success", sc.Message)
}

func TestDHCPv6TooShort(t *testing.T) {
	_, err := ParseDHCPv6([]byte{1, 2, 3})
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
