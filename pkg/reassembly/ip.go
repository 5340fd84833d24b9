// Package reassembly reconstructs higher-layer payloads from IPv4
// fragments and TCP segment streams.
package reassembly

import (
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	defaultFragmentTimeout = 30 * time.Second
	defaultMaxFragments    = 64
)

// IPStreamKey identifies one fragment stream: the IP identification
// field plus the unordered address pair, so both directions of a
// spoofed-looking exchange land in the same bucket.
type IPStreamKey struct {
	ID uint16
	A  netip.Addr // min(src, dst)
	B  netip.Addr // max(src, dst)
}

func ipStreamKey(ip *layers.IP) IPStreamKey {
	a, b := ip.SrcAddr, ip.DstAddr
	if b.Less(a) {
		a, b = b, a
	}
	return IPStreamKey{ID: ip.ID, A: a, B: b}
}

func (k IPStreamKey) String() string {
	return fmt.Sprintf("%d|%s|%s", k.ID, k.A, k.B)
}

// ipStream accumulates the fragments of one datagram.
type ipStream struct {
	key       IPStreamKey
	first     *layers.IP     // clone of the zero-offset fragment's header
	chunks    map[int][]byte // byte offset → payload, first writer wins
	totalSize int            // fixed once the MF=0 fragment arrives, else -1
	count     int
}

// IPReassemblerOptions tune stream lifetime and size limits.
type IPReassemblerOptions struct {
	// Timeout evicts incomplete streams; expired streams surface
	// through OnExpired.
	Timeout time.Duration
	// MaxFragments caps fragments per stream; exceeding it drops the
	// stream through OnOverflow.
	MaxFragments int
	OnExpired    func(IPStreamKey)
	OnOverflow   func(IPStreamKey)
}

// IPReassembler is a stateful IPv4 fragment reassembler. It is owned
// by a single caller and is not safe for concurrent use.
type IPReassembler struct {
	streams *cache.Cache
	opts    IPReassemblerOptions
}

// NewIPReassembler creates a reassembler with the given options (zero
// values select the defaults).
func NewIPReassembler(opts IPReassemblerOptions) *IPReassembler {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFragmentTimeout
	}
	if opts.MaxFragments <= 0 {
		opts.MaxFragments = defaultMaxFragments
	}
	c := cache.New(opts.Timeout, opts.Timeout)
	r := &IPReassembler{streams: c, opts: opts}
	c.OnEvicted(func(key string, v any) {
		s, ok := v.(*ipStream)
		if !ok || s == nil {
			return
		}
		metrics.ReassemblyActiveStreams.Dec()
		if s.totalSize != 0 && opts.OnExpired != nil {
			opts.OnExpired(s.key)
		}
	})
	return r
}

// Process feeds one parsed IPv4 packet through the reassembler.
// Non-fragments come straight back. Fragments return nil until the
// stream completes; the completed datagram comes back as a fresh IPv4
// PDU with offset zero, flags cleared and the inner payload reparsed.
func (r *IPReassembler) Process(ip *layers.IP) (*layers.IP, error) {
	if !ip.IsFragment() {
		return ip, nil
	}
	payload := fragmentPayload(ip)
	key := ipStreamKey(ip)
	ks := key.String()

	var s *ipStream
	if v, ok := r.streams.Get(ks); ok {
		s = v.(*ipStream)
	} else {
		s = &ipStream{key: key, chunks: map[int][]byte{}, totalSize: -1}
		r.streams.Set(ks, s, cache.DefaultExpiration)
		metrics.ReassemblyActiveStreams.Inc()
	}

	s.count++
	if s.count > r.opts.MaxFragments {
		s.totalSize = 0 // marks the eviction as deliberate
		r.streams.Delete(ks)
		if r.opts.OnOverflow != nil {
			r.opts.OnOverflow(key)
		}
		return nil, fmt.Errorf("%w: fragment stream %s over limit", pdu.ErrMalformed, ks)
	}

	off := int(ip.FragmentOffset()) * 8
	if _, dup := s.chunks[off]; !dup {
		s.chunks[off] = payload
	}
	if !ip.MF() {
		s.totalSize = off + len(payload)
	}
	if off == 0 {
		s.first = ip.Clone().(*layers.IP)
	}

	data, done := s.assemble()
	if !done {
		return nil, nil
	}
	s.totalSize = 0
	r.streams.Delete(ks)

	out := s.first
	out.SetChild(nil)
	out.SetMF(false)
	out.SetFragmentOffset(0)
	pdu.Adopt(out, pdu.InnerFromIPProto(out.Protocol(), data))
	logrus.WithFields(logrus.Fields{"stream": ks, "bytes": len(data)}).
		Debug("reassembled ipv4 datagram")
	return out, nil
}

// assemble checks completeness: the last fragment seen, the zero
// offset present, and the offsets contiguous up to the total size.
func (s *ipStream) assemble() ([]byte, bool) {
	if s.totalSize < 0 || s.first == nil {
		return nil, false
	}
	offsets := make([]int, 0, len(s.chunks))
	for off := range s.chunks {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	data := make([]byte, s.totalSize)
	next := 0
	for _, off := range offsets {
		chunk := s.chunks[off]
		if off > next {
			return nil, false
		}
		if end := off + len(chunk); end > next {
			copy(data[off:], chunk[:min(len(chunk), s.totalSize-off)])
			next = min(end, s.totalSize)
		}
	}
	return data, next == s.totalSize
}

// ClearStreams drops all pending fragment streams without surfacing
// them as expired.
func (r *IPReassembler) ClearStreams() {
	for key, item := range r.streams.Items() {
		if s, ok := item.Object.(*ipStream); ok {
			s.totalSize = 0
		}
		r.streams.Delete(key)
	}
}

// PendingStreams returns the number of incomplete streams.
func (r *IPReassembler) PendingStreams() int { return r.streams.ItemCount() }

// fragmentPayload renders the fragment's inner bytes.
func fragmentPayload(ip *layers.IP) []byte {
	c := ip.Child()
	if c == nil {
		return nil
	}
	if raw, ok := c.(*pdu.Raw); ok {
		return append([]byte{}, raw.Payload()...)
	}
	b, err := pdu.Serialize(c)
	if err != nil {
		return nil
	}
	return b
}
