package reassembly

import (
	"net/netip"

	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

// TCPStreamKey is the normalized 4-tuple of a flow: the SYN sender is
// the client.
type TCPStreamKey struct {
	ClientAddr netip.Addr
	ServerAddr netip.Addr
	ClientPort uint16
	ServerPort uint16
}

// TCPHalfStream tracks one direction of a flow. The contiguous
// payload buffer is append-only; segments ahead of the next expected
// sequence wait in the out-of-order map.
type TCPHalfStream struct {
	ISN     uint32
	nextSeq uint32
	pending map[uint32][]byte
	payload []byte
}

// Payload returns the contiguous byte stream received so far.
func (h *TCPHalfStream) Payload() []byte { return h.payload }

// TCPStream is one tracked flow.
type TCPStream struct {
	Key      TCPStreamKey
	client   TCPHalfStream
	server   TCPHalfStream
	finished bool
}

// ClientPayload returns the client→server byte stream.
func (s *TCPStream) ClientPayload() []byte { return s.client.payload }

// ServerPayload returns the server→client byte stream.
func (s *TCPStream) ServerPayload() []byte { return s.server.payload }

// Finished reports whether a FIN closed the stream.
func (s *TCPStream) Finished() bool { return s.finished }

// TCPReassembler reconstructs per-flow payload streams. Flows begin at
// a SYN without ACK; anything not matching a tracked flow is ignored.
// Owned by a single caller, not safe for concurrent use.
type TCPReassembler struct {
	flows map[TCPStreamKey]*TCPStream

	// OnData fires whenever either direction's contiguous payload
	// grows. OnStreamEnd fires once, on the first FIN.
	OnData      func(*TCPStream)
	OnStreamEnd func(*TCPStream)
}

// NewTCPReassembler creates an empty reassembler.
func NewTCPReassembler() *TCPReassembler {
	return &TCPReassembler{flows: map[TCPStreamKey]*TCPStream{}}
}

// Process feeds a parsed chain. It finds the IPv4/IPv6 and TCP layers
// itself, so callers can pass whole frames.
func (r *TCPReassembler) Process(root pdu.PDU) {
	tcp, ok := pdu.Find[*layers.TCP](root)
	if !ok {
		return
	}
	var src, dst netip.Addr
	if ip, ok := pdu.Find[*layers.IP](root); ok {
		src, dst = ip.SrcAddr, ip.DstAddr
	} else if ip6, ok := pdu.Find[*layers.IPv6](root); ok {
		src, dst = ip6.SrcAddr, ip6.DstAddr
	} else {
		return
	}

	if tcp.Flags&layers.TCPSyn != 0 && tcp.Flags&layers.TCPAck == 0 {
		key := TCPStreamKey{ClientAddr: src, ServerAddr: dst, ClientPort: tcp.SrcPort, ServerPort: tcp.DstPort}
		s := &TCPStream{Key: key}
		s.client = TCPHalfStream{ISN: tcp.Seq, nextSeq: tcp.Seq + 1, pending: map[uint32][]byte{}}
		s.server = TCPHalfStream{pending: map[uint32][]byte{}}
		r.flows[key] = s
		return
	}

	s, fromClient := r.lookup(src, dst, tcp.SrcPort, tcp.DstPort)
	if s == nil || s.finished {
		return
	}
	half := &s.server
	if fromClient {
		half = &s.client
	}
	if !fromClient && tcp.Flags&layers.TCPSyn != 0 {
		half.ISN = tcp.Seq
		half.nextSeq = tcp.Seq + 1
	}

	if data := tcpPayload(tcp); len(data) > 0 {
		if half.add(tcp.Seq, data) && r.OnData != nil {
			r.OnData(s)
		}
	}
	if tcp.Flags&layers.TCPFin != 0 {
		if r.OnStreamEnd != nil {
			r.OnStreamEnd(s)
		}
		s.finished = true
	}
}

func (r *TCPReassembler) lookup(src, dst netip.Addr, sport, dport uint16) (*TCPStream, bool) {
	if s, ok := r.flows[TCPStreamKey{ClientAddr: src, ServerAddr: dst, ClientPort: sport, ServerPort: dport}]; ok {
		return s, true
	}
	if s, ok := r.flows[TCPStreamKey{ClientAddr: dst, ServerAddr: src, ClientPort: dport, ServerPort: sport}]; ok {
		return s, false
	}
	return nil, false
}

// add places a segment. It reports whether the contiguous payload
// grew. Overlaps resolve first-writer-wins: only the bytes beyond
// what is already contiguous are taken.
func (h *TCPHalfStream) add(seq uint32, data []byte) bool {
	switch {
	case seq == h.nextSeq:
		// in order
	case seqBefore(seq, h.nextSeq):
		overlap := h.nextSeq - seq
		if int(overlap) >= len(data) {
			return false // fully before the window
		}
		data = data[overlap:]
		seq = h.nextSeq
	default:
		if _, dup := h.pending[seq]; !dup {
			h.pending[seq] = append([]byte{}, data...)
		}
		return false
	}

	h.payload = append(h.payload, data...)
	h.nextSeq += uint32(len(data))

	// Drain any queued segments the new data made contiguous.
	for {
		advanced := false
		for seq, held := range h.pending {
			if seqBefore(seq, h.nextSeq) || seq == h.nextSeq {
				delete(h.pending, seq)
				if overlap := h.nextSeq - seq; int(overlap) < len(held) {
					h.payload = append(h.payload, held[overlap:]...)
					h.nextSeq += uint32(len(held)) - overlap
					advanced = true
				}
			}
		}
		if !advanced {
			return true
		}
	}
}

// seqBefore compares sequence numbers with wraparound.
func seqBefore(a, b uint32) bool { return int32(a-b) < 0 }

// Streams returns the tracked flows.
func (r *TCPReassembler) Streams() map[TCPStreamKey]*TCPStream { return r.flows }

// ClearStreams drops all flow state.
func (r *TCPReassembler) ClearStreams() {
	r.flows = map[TCPStreamKey]*TCPStream{}
}

func tcpPayload(t *layers.TCP) []byte {
	c := t.Child()
	if c == nil {
		return nil
	}
	if raw, ok := c.(*pdu.Raw); ok {
		return raw.Payload()
	}
	b, err := pdu.Serialize(c)
	if err != nil {
		return nil
	}
	return b
}
