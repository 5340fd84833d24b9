package reassembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	clientISN = uint32(1000)
	serverISN = uint32(9000)
)

func segment(t *testing.T, fromClient bool, seq uint32, flags uint16, payload []byte) pdu.PDU {
	t.Helper()
	src, dst := "10.0.0.1", "10.0.0.2"
	sport, dport := uint16(40000), uint16(80)
	if !fromClient {
		src, dst = dst, src
		sport, dport = dport, sport
	}
	ip := layers.NewIP(pdu.MustIP(src), pdu.MustIP(dst))
	tcp := layers.NewTCP(sport, dport)
	tcp.Seq = seq
	tcp.Flags = flags
	pdu.Stack(ip, tcp)
	if len(payload) > 0 {
		pdu.Adopt(tcp, pdu.NewRaw(payload))
	}
	return ip
}

func handshake(t *testing.T, r *TCPReassembler) {
	t.Helper()
	r.Process(segment(t, true, clientISN, layers.TCPSyn, nil))
	r.Process(segment(t, false, serverISN, layers.TCPSyn|layers.TCPAck, nil))
}

func TestTCPStreamInOrder(t *testing.T) {
	r := NewTCPReassembler()
	var updates int
	r.OnData = func(*TCPStream) { updates++ }

	handshake(t, r)
	r.Process(segment(t, true, clientISN+1, layers.TCPAck|layers.TCPPsh, []byte("GET / ")))
	r.Process(segment(t, true, clientISN+7, layers.TCPAck, []byte("HTTP/1.0\r\n")))
	r.Process(segment(t, false, serverISN+1, layers.TCPAck, []byte("200 OK")))

	require.Len(t, r.Streams(), 1)
	for _, s := range r.Streams() {
		assert.Equal(t, "GET / HTTP/1.0\r\n", string(s.ClientPayload()))
		assert.Equal(t, "200 OK", string(s.ServerPayload()))
	}
	assert.Equal(t, 3, updates)
}

func TestTCPStreamOutOfOrder(t *testing.T) {
	r := NewTCPReassembler()
	handshake(t, r)

	// The second chunk arrives first and waits.
	r.Process(segment(t, true, clientISN+6, layers.TCPAck, []byte("world")))
	for _, s := range r.Streams() {
		assert.Empty(t, s.ClientPayload())
	}
	r.Process(segment(t, true, clientISN+1, layers.TCPAck, []byte("hello")))
	for _, s := range r.Streams() {
		assert.Equal(t, "helloworld", string(s.ClientPayload()))
	}
}

func TestTCPStreamOverlapFirstWriterWins(t *testing.T) {
	r := NewTCPReassembler()
	handshake(t, r)

	r.Process(segment(t, true, clientISN+1, layers.TCPAck, []byte("abcdef")))
	// Overlapping retransmission with different bytes: only the new
	// tail is taken.
	r.Process(segment(t, true, clientISN+4, layers.TCPAck, []byte("XYZ123")))
	for _, s := range r.Streams() {
		assert.Equal(t, "abcdef123", string(s.ClientPayload()))
	}

	// A segment fully before the window is dropped.
	r.Process(segment(t, true, clientISN+1, layers.TCPAck, []byte("abc")))
	for _, s := range r.Streams() {
		assert.Equal(t, "abcdef123", string(s.ClientPayload()))
	}
}

func TestTCPStreamPayloadMonotonic(t *testing.T) {
	r := NewTCPReassembler()
	var lengths []int
	r.OnData = func(s *TCPStream) { lengths = append(lengths, len(s.ClientPayload())) }

	handshake(t, r)
	r.Process(segment(t, true, clientISN+1, layers.TCPAck, []byte("aa")))
	r.Process(segment(t, true, clientISN+3, layers.TCPAck, []byte("bb")))
	r.Process(segment(t, true, clientISN+5, layers.TCPAck, []byte("cc")))

	// Append-only growth.
	for i := 1; i < len(lengths); i++ {
		assert.Greater(t, lengths[i], lengths[i-1])
	}
}

func TestTCPStreamFinEndsStream(t *testing.T) {
	r := NewTCPReassembler()
	var ended int
	r.OnStreamEnd = func(s *TCPStream) {
		ended++
		assert.Equal(t, "bye", string(s.ClientPayload()))
	}

	handshake(t, r)
	r.Process(segment(t, true, clientISN+1, layers.TCPAck|layers.TCPPsh, []byte("bye")))
	r.Process(segment(t, true, clientISN+4, layers.TCPAck|layers.TCPFin, nil))

	assert.Equal(t, 1, ended)
	for _, s := range r.Streams() {
		assert.True(t, s.Finished())
	}

	// Data after FIN is ignored.
	r.Process(segment(t, true, clientISN+5, layers.TCPAck, []byte("late")))
	for _, s := range r.Streams() {
		assert.Equal(t, "bye", string(s.ClientPayload()))
	}
}

func TestTCPStreamIgnoresUnknownFlows(t *testing.T) {
	r := NewTCPReassembler()
	// No SYN seen: mid-stream segments are not tracked.
	r.Process(segment(t, true, 5000, layers.TCPAck, []byte("data")))
	assert.Empty(t, r.Streams())
}

func TestTCPClearStreams(t *testing.T) {
	r := NewTCPReassembler()
	handshake(t, r)
	require.Len(t, r.Streams(), 1)
	r.ClearStreams()
	assert.Empty(t, r.Streams())
}
