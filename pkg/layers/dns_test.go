package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/pdu"
)

func TestDNSQueryRoundTrip(t *testing.T) {
	q := NewDNSQuery(0x1234, "www.example.com", DNSTypeA)
	wire, err := pdu.Serialize(q)
	require.NoError(t, err)
	// 12 header + 17 name + 4 type/class.
	require.Len(t, wire, 33)

	parsed, err := ParseDNS(wire)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), parsed.ID)
	assert.Equal(t, uint16(0), parsed.Flags&DNSFlagQR)
	require.Len(t, parsed.Questions, 1)
	assert.Equal(t, "www.example.com", parsed.Questions[0].Name)
	assert.Equal(t, DNSTypeA, parsed.Questions[0].QType)

	again, err := pdu.Serialize(parsed)
	require.NoError(t, err)
	assert.Equal(t, wire, again)
}

func TestDNSResponseCompression(t *testing.T) {
	d := NewDNSQuery(1, "www.example.com", DNSTypeA)
	d.Flags |= DNSFlagQR | DNSFlagRA
	d.Answers = append(d.Answers, DNSResource{
		Name:   "www.example.com",
		RType:  DNSTypeA,
		RClass: 1,
		TTL:    300,
		Data:   []byte{93, 184, 216, 34},
	})

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	// The answer's name collapses to a 2-byte pointer: 12 header +
	// 21 question + (2 + 10 + 4) answer.
	require.Len(t, wire, 49)
	assert.Equal(t, byte(0xC0), wire[33]&0xC0)

	parsed, err := ParseDNS(wire)
	require.NoError(t, err)
	require.Len(t, parsed.Answers, 1)
	assert.Equal(t, "www.example.com", parsed.Answers[0].Name)
	addr, ok := parsed.Answers[0].Address()
	require.True(t, ok)
	assert.Equal(t, "93.184.216.34", addr.String())
}

func TestDNSRecordDataDecoding(t *testing.T) {
	mx := DNSResource{RType: DNSTypeMX, Data: append([]byte{0x00, 0x0A}, encodeName("mail.example.com")...)}
	pref, name, ok := mx.MX()
	require.True(t, ok)
	assert.Equal(t, uint16(10), pref)
	assert.Equal(t, "mail.example.com", name)

	cname := DNSResource{RType: DNSTypeCNAME, Data: encodeName("example.com")}
	got, ok := cname.DomainData()
	require.True(t, ok)
	assert.Equal(t, "example.com", got)

	txt := DNSResource{RType: DNSTypeTXT, Data: []byte{5, 'h', 'e', 'l', 'l', 'o', 2, 'h', 'i'}}
	strs, ok := txt.TXT()
	require.True(t, ok)
	assert.Equal(t, []string{"hello", "hi"}, strs)
}

func TestDNSSOARoundTrip(t *testing.T) {
	soaData := append(encodeName("ns1.example.com"), encodeName("admin.example.com")...)
	soaData = append(soaData, 0, 0, 0, 1, 0, 0, 14, 16, 0, 0, 3, 132, 0, 9, 58, 128, 0, 0, 1, 44)
	d := &DNS{ID: 2, Flags: DNSFlagQR | DNSFlagAA}
	d.Authority = append(d.Authority, DNSResource{
		Name: "example.com", RType: DNSTypeSOA, RClass: 1, TTL: 3600, Data: soaData,
	})

	wire, err := pdu.Serialize(d)
	require.NoError(t, err)
	parsed, err := ParseDNS(wire)
	require.NoError(t, err)
	require.Len(t, parsed.Authority, 1)

	soa, ok := parsed.Authority[0].SOA()
	require.True(t, ok)
	assert.Equal(t, "ns1.example.com", soa.MName)
	assert.Equal(t, "admin.example.com", soa.RName)
	assert.Equal(t, uint32(1), soa.Serial)
	assert.Equal(t, uint32(300), soa.Minimum)
}

func TestDNSPointerCycleRejected(t *testing.T) {
	msg := make([]byte, 16)
	msg[4] = 0 // qdcount 0 — decode the name manually instead
	// A name at offset 12 pointing at itself.
	msg[12] = 0xC0
	msg[13] = 12
	_, _, err := decodeName(msg, 12, nil)
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}

func TestDNSTruncatedRejected(t *testing.T) {
	q := NewDNSQuery(9, "a.b", DNSTypeA)
	wire, err := pdu.Serialize(q)
	require.NoError(t, err)
	_, err = ParseDNS(wire[:len(wire)-3])
	assert.ErrorIs(t, err, pdu.ErrMalformed)
}
