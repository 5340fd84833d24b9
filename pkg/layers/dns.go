package layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"firestige.xyz/strix/pkg/pdu"
)

// DNS record types.
const (
	DNSTypeA     uint16 = 1
	DNSTypeNS    uint16 = 2
	DNSTypeCNAME uint16 = 5
	DNSTypeSOA   uint16 = 6
	DNSTypePTR   uint16 = 12
	DNSTypeMX    uint16 = 15
	DNSTypeTXT   uint16 = 16
	DNSTypeAAAA  uint16 = 28
)

// DNS flag bits within the 16-bit flags word.
const (
	DNSFlagQR uint16 = 1 << 15
	DNSFlagAA uint16 = 1 << 10
	DNSFlagTC uint16 = 1 << 9
	DNSFlagRD uint16 = 1 << 8
	DNSFlagRA uint16 = 1 << 7
)

const dnsHeaderSize = 12

// DNSQuestion is one entry of the question section.
type DNSQuestion struct {
	Name   string
	QType  uint16
	QClass uint16
}

// DNSResource is one resource record. Data holds the record payload in
// canonical (uncompressed) wire form; compression pointers are
// expanded during parse and may be re-introduced during serialization.
type DNSResource struct {
	Name   string
	RType  uint16
	RClass uint16
	TTL    uint32
	Data   []byte
}

// Address decodes an A or AAAA record payload.
func (r *DNSResource) Address() (netip.Addr, bool) {
	switch {
	case r.RType == DNSTypeA && len(r.Data) == 4:
		return netip.AddrFrom4([4]byte(r.Data)), true
	case r.RType == DNSTypeAAAA && len(r.Data) == 16:
		return netip.AddrFrom16([16]byte(r.Data)), true
	}
	return netip.Addr{}, false
}

// DomainData decodes a CNAME/NS/PTR payload.
func (r *DNSResource) DomainData() (string, bool) {
	name, _, err := decodeName(r.Data, 0, nil)
	if err != nil {
		return "", false
	}
	return name, true
}

// MX decodes an MX payload into (preference, exchange).
func (r *DNSResource) MX() (uint16, string, bool) {
	if r.RType != DNSTypeMX || len(r.Data) < 3 {
		return 0, "", false
	}
	pref := binary.BigEndian.Uint16(r.Data)
	name, _, err := decodeName(r.Data, 2, nil)
	if err != nil {
		return 0, "", false
	}
	return pref, name, true
}

// TXT decodes the character-strings of a TXT payload.
func (r *DNSResource) TXT() ([]string, bool) {
	if r.RType != DNSTypeTXT {
		return nil, false
	}
	var out []string
	for i := 0; i < len(r.Data); {
		l := int(r.Data[i])
		if i+1+l > len(r.Data) {
			return nil, false
		}
		out = append(out, string(r.Data[i+1:i+1+l]))
		i += 1 + l
	}
	return out, true
}

// DNSSOA is the decoded SOA record payload.
type DNSSOA struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// SOA decodes an SOA payload.
func (r *DNSResource) SOA() (DNSSOA, bool) {
	var s DNSSOA
	if r.RType != DNSTypeSOA {
		return s, false
	}
	var off int
	var err error
	if s.MName, off, err = decodeName(r.Data, 0, nil); err != nil {
		return s, false
	}
	if s.RName, off, err = decodeName(r.Data, off, nil); err != nil {
		return s, false
	}
	if off+20 > len(r.Data) {
		return s, false
	}
	s.Serial = binary.BigEndian.Uint32(r.Data[off:])
	s.Refresh = binary.BigEndian.Uint32(r.Data[off+4:])
	s.Retry = binary.BigEndian.Uint32(r.Data[off+8:])
	s.Expire = binary.BigEndian.Uint32(r.Data[off+12:])
	s.Minimum = binary.BigEndian.Uint32(r.Data[off+16:])
	return s, true
}

// DNS is a DNS message: header plus the four sections. Compressed
// names are expanded on parse (with pointer-cycle detection);
// serialization re-compresses suffixes that were already emitted, with
// no optimality guarantee.
type DNS struct {
	pdu.Base
	ID         uint16
	Flags      uint16
	Questions  []DNSQuestion
	Answers    []DNSResource
	Authority  []DNSResource
	Additional []DNSResource
}

// NewDNSQuery builds a recursion-desired query for name.
func NewDNSQuery(id uint16, name string, qtype uint16) *DNS {
	return &DNS{
		ID:        id,
		Flags:     DNSFlagRD,
		Questions: []DNSQuestion{{Name: name, QType: qtype, QClass: 1}},
	}
}

// ParseDNS dissects a DNS message.
func ParseDNS(data []byte) (*DNS, error) {
	if len(data) < dnsHeaderSize {
		return nil, fmt.Errorf("%w: dns header", pdu.ErrMalformed)
	}
	d := &DNS{
		ID:    binary.BigEndian.Uint16(data),
		Flags: binary.BigEndian.Uint16(data[2:]),
	}
	qd := int(binary.BigEndian.Uint16(data[4:]))
	an := int(binary.BigEndian.Uint16(data[6:]))
	ns := int(binary.BigEndian.Uint16(data[8:]))
	ar := int(binary.BigEndian.Uint16(data[10:]))

	off := dnsHeaderSize
	var err error
	for i := 0; i < qd; i++ {
		var q DNSQuestion
		if q.Name, off, err = decodeName(data, off, nil); err != nil {
			return nil, err
		}
		if off+4 > len(data) {
			return nil, fmt.Errorf("%w: dns question", pdu.ErrMalformed)
		}
		q.QType = binary.BigEndian.Uint16(data[off:])
		q.QClass = binary.BigEndian.Uint16(data[off+2:])
		off += 4
		d.Questions = append(d.Questions, q)
	}
	for _, section := range []*[]DNSResource{&d.Answers, &d.Authority, &d.Additional} {
		count := an
		switch section {
		case &d.Authority:
			count = ns
		case &d.Additional:
			count = ar
		}
		for i := 0; i < count; i++ {
			var r DNSResource
			if r, off, err = decodeResource(data, off); err != nil {
				return nil, err
			}
			*section = append(*section, r)
		}
	}
	return d, nil
}

func decodeResource(data []byte, off int) (DNSResource, int, error) {
	var r DNSResource
	var err error
	if r.Name, off, err = decodeName(data, off, nil); err != nil {
		return r, off, err
	}
	if off+10 > len(data) {
		return r, off, fmt.Errorf("%w: dns resource record", pdu.ErrMalformed)
	}
	r.RType = binary.BigEndian.Uint16(data[off:])
	r.RClass = binary.BigEndian.Uint16(data[off+2:])
	r.TTL = binary.BigEndian.Uint32(data[off+4:])
	rdlen := int(binary.BigEndian.Uint16(data[off+8:]))
	off += 10
	if off+rdlen > len(data) {
		return r, off, fmt.Errorf("%w: dns rdata", pdu.ErrMalformed)
	}
	r.Data, err = canonicalRData(data, off, rdlen, r.RType)
	if err != nil {
		return r, off, err
	}
	return r, off + rdlen, nil
}

// canonicalRData expands compression pointers inside name-bearing
// rdata so the stored payload is self-contained.
func canonicalRData(msg []byte, off, rdlen int, rtype uint16) ([]byte, error) {
	switch rtype {
	case DNSTypeCNAME, DNSTypeNS, DNSTypePTR:
		name, _, err := decodeName(msg, off, nil)
		if err != nil {
			return nil, err
		}
		return encodeName(name), nil
	case DNSTypeMX:
		if rdlen < 3 {
			return nil, fmt.Errorf("%w: dns mx rdata", pdu.ErrMalformed)
		}
		name, _, err := decodeName(msg, off+2, nil)
		if err != nil {
			return nil, err
		}
		return append(append([]byte{}, msg[off:off+2]...), encodeName(name)...), nil
	case DNSTypeSOA:
		mname, n, err := decodeName(msg, off, nil)
		if err != nil {
			return nil, err
		}
		rname, n, err := decodeName(msg, n, nil)
		if err != nil {
			return nil, err
		}
		if n+20 > len(msg) {
			return nil, fmt.Errorf("%w: dns soa rdata", pdu.ErrMalformed)
		}
		out := append(encodeName(mname), encodeName(rname)...)
		return append(out, msg[n:n+20]...), nil
	default:
		out := make([]byte, rdlen)
		copy(out, msg[off:off+rdlen])
		return out, nil
	}
}

// decodeName expands a possibly-compressed domain name starting at
// off. seen tracks pointer targets for cycle detection.
func decodeName(data []byte, off int, seen map[int]bool) (string, int, error) {
	var labels []string
	end := -1 // position after the name in the original stream
	pos := off
	for {
		if pos >= len(data) {
			return "", 0, fmt.Errorf("%w: dns name", pdu.ErrMalformed)
		}
		l := int(data[pos])
		switch {
		case l == 0:
			if end < 0 {
				end = pos + 1
			}
			return strings.Join(labels, "."), end, nil
		case l&0xC0 == 0xC0:
			if pos+1 >= len(data) {
				return "", 0, fmt.Errorf("%w: dns name pointer", pdu.ErrMalformed)
			}
			target := (l&0x3F)<<8 | int(data[pos+1])
			if seen == nil {
				seen = map[int]bool{}
			}
			if seen[target] {
				return "", 0, fmt.Errorf("%w: dns name pointer cycle", pdu.ErrMalformed)
			}
			seen[target] = true
			if end < 0 {
				end = pos + 2
			}
			pos = target
		case l&0xC0 != 0:
			return "", 0, fmt.Errorf("%w: dns label length 0x%02x", pdu.ErrMalformed, l)
		default:
			if pos+1+l > len(data) {
				return "", 0, fmt.Errorf("%w: dns label", pdu.ErrMalformed)
			}
			labels = append(labels, string(data[pos+1:pos+1+l]))
			pos += 1 + l
		}
	}
}

// encodeName renders a domain name with no compression.
func encodeName(name string) []byte {
	var out []byte
	if name != "" {
		for _, label := range strings.Split(name, ".") {
			out = append(out, byte(len(label)))
			out = append(out, label...)
		}
	}
	return append(out, 0)
}

func (d *DNS) Type() pdu.Type  { return pdu.TypeDNS }
func (d *DNS) HeaderSize() int { return len(d.wire()) }

func (d *DNS) Clone() pdu.PDU {
	c := *d
	c.Base = pdu.Base{}
	c.Questions = append([]DNSQuestion(nil), d.Questions...)
	c.Answers = cloneResources(d.Answers)
	c.Authority = cloneResources(d.Authority)
	c.Additional = cloneResources(d.Additional)
	pdu.Adopt(&c, d.CloneChild())
	return &c
}

func cloneResources(rs []DNSResource) []DNSResource {
	out := make([]DNSResource, len(rs))
	for i, r := range rs {
		data := make([]byte, len(r.Data))
		copy(data, r.Data)
		r.Data = data
		out[i] = r
	}
	return out
}

func (d *DNS) WriteHeader(buf []byte, total int) error {
	w := d.wire()
	if len(buf) < len(w) {
		return pdu.ErrSerialize
	}
	copy(buf, w)
	return nil
}

// wire renders the whole message, compressing name suffixes against
// previously emitted names.
func (d *DNS) wire() []byte {
	out := make([]byte, dnsHeaderSize, dnsHeaderSize+64)
	binary.BigEndian.PutUint16(out, d.ID)
	binary.BigEndian.PutUint16(out[2:], d.Flags)
	binary.BigEndian.PutUint16(out[4:], uint16(len(d.Questions)))
	binary.BigEndian.PutUint16(out[6:], uint16(len(d.Answers)))
	binary.BigEndian.PutUint16(out[8:], uint16(len(d.Authority)))
	binary.BigEndian.PutUint16(out[10:], uint16(len(d.Additional)))

	offsets := map[string]int{}
	for _, q := range d.Questions {
		out = appendName(out, q.Name, offsets)
		out = binary.BigEndian.AppendUint16(out, q.QType)
		out = binary.BigEndian.AppendUint16(out, q.QClass)
	}
	for _, section := range [][]DNSResource{d.Answers, d.Authority, d.Additional} {
		for _, r := range section {
			out = appendName(out, r.Name, offsets)
			out = binary.BigEndian.AppendUint16(out, r.RType)
			out = binary.BigEndian.AppendUint16(out, r.RClass)
			out = binary.BigEndian.AppendUint32(out, r.TTL)
			out = binary.BigEndian.AppendUint16(out, uint16(len(r.Data)))
			out = append(out, r.Data...)
		}
	}
	return out
}

// appendName emits name, replacing the longest already-emitted suffix
// with a compression pointer.
func appendName(out []byte, name string, offsets map[string]int) []byte {
	for name != "" {
		if off, ok := offsets[name]; ok && off < 0x4000 {
			return append(out, 0xC0|byte(off>>8), byte(off))
		}
		if len(out) < 0x4000 {
			offsets[name] = len(out)
		}
		dot := strings.IndexByte(name, '.')
		label := name
		if dot >= 0 {
			label = name[:dot]
			name = name[dot+1:]
		} else {
			name = ""
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0)
}
