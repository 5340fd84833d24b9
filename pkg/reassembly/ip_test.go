package reassembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

// makeFragments splits a UDP datagram over IPv4 fragments of the
// given payload size (a multiple of 8).
func makeFragments(t *testing.T, payload []byte, mtuPayload int) []*layers.IP {
	t.Helper()
	udp := layers.NewUDP(4000, 4001)
	pdu.Adopt(udp, pdu.NewRaw(payload))
	inner, err := pdu.Serialize(udp)
	require.NoError(t, err)

	var frags []*layers.IP
	for off := 0; off < len(inner); off += mtuPayload {
		end := off + mtuPayload
		if end > len(inner) {
			end = len(inner)
		}
		ip := layers.NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2"))
		ip.ID = 0x77
		ip.SetProtocol(layers.IPProtoUDP)
		ip.SetFragmentOffset(uint16(off / 8))
		ip.SetMF(end < len(inner))
		pdu.Adopt(ip, pdu.NewRaw(inner[off:end]))
		frags = append(frags, ip)
	}
	return frags
}

func TestIPReassemblyReverseOrder(t *testing.T) {
	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	frags := makeFragments(t, payload, 1480)
	require.Len(t, frags, 2)

	r := NewIPReassembler(IPReassemblerOptions{})

	// Deliver in reverse order: nothing until the stream completes.
	out, err := r.Process(frags[1])
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, r.PendingStreams())

	out, err = r.Process(frags[0])
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 0, r.PendingStreams())

	assert.False(t, out.IsFragment())
	assert.Equal(t, uint16(0), out.FragmentOffset())
	assert.False(t, out.MF())

	udp, ok := pdu.Find[*layers.UDP](out)
	require.True(t, ok)
	assert.Equal(t, payload, udp.Child().(*pdu.Raw).Payload())
}

func TestIPReassemblyAllPermutations(t *testing.T) {
	payload := make([]byte, 3000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	base := makeFragments(t, payload, 1000)
	require.Len(t, base, 4)

	perms := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, perm := range perms {
		r := NewIPReassembler(IPReassemblerOptions{})
		var got *layers.IP
		emitted := 0
		for _, idx := range perm {
			out, err := r.Process(base[idx].Clone().(*layers.IP))
			require.NoError(t, err)
			if out != nil {
				emitted++
				got = out
			}
		}
		require.Equal(t, 1, emitted, "permutation %v", perm)
		udp, ok := pdu.Find[*layers.UDP](got)
		require.True(t, ok)
		assert.Equal(t, payload, udp.Child().(*pdu.Raw).Payload())
	}
}

func TestIPReassemblyDuplicateFirstWriterWins(t *testing.T) {
	payload := make([]byte, 1600)
	frags := makeFragments(t, payload, 800)
	require.Len(t, frags, 3)

	r := NewIPReassembler(IPReassemblerOptions{})
	_, err := r.Process(frags[0])
	require.NoError(t, err)

	// A duplicate of fragment 0 with different bytes is ignored.
	dup := frags[0].Clone().(*layers.IP)
	dup.SetChild(nil)
	junk := make([]byte, 808)
	for i := range junk {
		junk[i] = 0xFF
	}
	pdu.Adopt(dup, pdu.NewRaw(junk[:800]))
	_, err = r.Process(dup)
	require.NoError(t, err)

	_, err = r.Process(frags[1])
	require.NoError(t, err)
	out, err := r.Process(frags[2])
	require.NoError(t, err)
	require.NotNil(t, out)

	udp, ok := pdu.Find[*layers.UDP](out)
	require.True(t, ok)
	assert.Equal(t, payload, udp.Child().(*pdu.Raw).Payload())
}

func TestIPReassemblyNonFragmentPassthrough(t *testing.T) {
	ip := layers.NewIP(pdu.MustIP("10.0.0.1"), pdu.MustIP("10.0.0.2"))
	pdu.Adopt(ip, pdu.NewRaw([]byte{1}))
	r := NewIPReassembler(IPReassemblerOptions{})
	out, err := r.Process(ip)
	require.NoError(t, err)
	assert.Same(t, ip, out)
}

func TestIPReassemblyOverflowCallback(t *testing.T) {
	var overflowed []IPStreamKey
	r := NewIPReassembler(IPReassemblerOptions{
		MaxFragments: 2,
		OnOverflow:   func(k IPStreamKey) { overflowed = append(overflowed, k) },
	})

	payload := make([]byte, 4000)
	frags := makeFragments(t, payload, 1000)
	require.GreaterOrEqual(t, len(frags), 3)

	_, err := r.Process(frags[0])
	require.NoError(t, err)
	_, err = r.Process(frags[1])
	require.NoError(t, err)
	_, err = r.Process(frags[2])
	assert.ErrorIs(t, err, pdu.ErrMalformed)
	assert.Len(t, overflowed, 1)
}

func TestIPReassemblyClearStreams(t *testing.T) {
	payload := make([]byte, 1600)
	frags := makeFragments(t, payload, 800)

	r := NewIPReassembler(IPReassemblerOptions{Timeout: time.Minute})
	_, err := r.Process(frags[0])
	require.NoError(t, err)
	assert.Equal(t, 1, r.PendingStreams())

	r.ClearStreams()
	assert.Equal(t, 0, r.PendingStreams())
}
