package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// Capability-information bits of management frames.
const (
	Dot11CapESS       uint16 = 1 << 0
	Dot11CapIBSS      uint16 = 1 << 1
	Dot11CapPrivacy   uint16 = 1 << 4
	Dot11CapShortPre  uint16 = 1 << 5
	Dot11CapSpectrum  uint16 = 1 << 8
	Dot11CapQoS       uint16 = 1 << 9
	Dot11CapShortSlot uint16 = 1 << 10
	Dot11CapRadioMeas uint16 = 1 << 12
)

// dot11Mgmt extends the base header with addr2/addr3, the fragment and
// sequence word, the capability field and the tagged parameters shared
// by management frames.
type dot11Mgmt struct {
	dot11Header
	Addr2      pdu.HWAddress
	Addr3      pdu.HWAddress
	FragSeq    uint16
	Capability uint16
	Tags       pdu.Options
}

const dot11MgmtHeaderSize = 24

func (m *dot11Mgmt) parseMgmtHeader(in *stream.Input) error {
	if err := m.parseCommon(in); err != nil {
		return err
	}
	b, err := in.ReadBytes(6)
	if err != nil {
		return fmt.Errorf("%w: 802.11 mgmt header", pdu.ErrMalformed)
	}
	copy(m.Addr2[:], b)
	if b, err = in.ReadBytes(6); err != nil {
		return fmt.Errorf("%w: 802.11 mgmt header", pdu.ErrMalformed)
	}
	copy(m.Addr3[:], b)
	if m.FragSeq, err = in.ReadU16LE(); err != nil {
		return fmt.Errorf("%w: 802.11 mgmt header", pdu.ErrMalformed)
	}
	return nil
}

func (m *dot11Mgmt) parseTags(in *stream.Input) error {
	for in.Remaining() > 0 {
		id, _ := in.ReadU8()
		l, err := in.ReadU8()
		if err != nil || !in.CanRead(int(l)) {
			return fmt.Errorf("%w: 802.11 tagged parameter %d", pdu.ErrMalformed, id)
		}
		payload, _ := in.ReadBytes(int(l))
		m.Tags.Add(uint16(id), payload)
	}
	return nil
}

func (m *dot11Mgmt) tagsSize() int {
	n := 0
	for _, t := range m.Tags {
		n += 2 + len(t.Data)
	}
	return n
}

func (m *dot11Mgmt) writeMgmtHeader(out *stream.Output) error {
	if err := m.writeCommon(out, Dot11TypeMgmt); err != nil {
		return err
	}
	out.WriteBytes(m.Addr2[:])
	out.WriteBytes(m.Addr3[:])
	return out.WriteU16LE(m.FragSeq)
}

func (m *dot11Mgmt) writeTags(out *stream.Output) error {
	for _, t := range m.Tags {
		if len(t.Data) > 255 {
			return fmt.Errorf("%w: 802.11 tag %d too long", pdu.ErrSerialize, t.Kind)
		}
		out.WriteU8(uint8(t.Kind))
		out.WriteU8(uint8(len(t.Data)))
		if err := out.WriteBytes(t.Data); err != nil {
			return err
		}
	}
	return nil
}

// SSID returns the SSID tagged parameter.
func (m *dot11Mgmt) SSID() (string, bool) {
	t, ok := m.Tags.Find(Dot11TagSSID)
	if !ok {
		return "", false
	}
	return string(t.Data), true
}

// SetSSID adds the SSID tagged parameter.
func (m *dot11Mgmt) SetSSID(ssid string) { m.Tags.Add(Dot11TagSSID, []byte(ssid)) }

// RSNInfo returns the decoded RSN information element, if present.
func (m *dot11Mgmt) RSNInfo() (*RSNInformation, bool) {
	t, ok := m.Tags.Find(Dot11TagRSN)
	if !ok {
		return nil, false
	}
	info, err := ParseRSNInformation(t.Data)
	if err != nil {
		return nil, false
	}
	return info, true
}

// SetRSNInfo adds an RSN information element.
func (m *dot11Mgmt) SetRSNInfo(info *RSNInformation) {
	m.Tags.Add(Dot11TagRSN, info.encode())
}

func (m *dot11Mgmt) cloneInto(dst *dot11Mgmt) {
	dst.Base = pdu.Base{}
	dst.Tags = m.Tags.Clone()
}

// Dot11Beacon is a beacon management frame.
type Dot11Beacon struct {
	dot11Mgmt
	Timestamp uint64
	Interval  uint16
}

// NewDot11Beacon builds a broadcast beacon for the given transmitter.
func NewDot11Beacon(src pdu.HWAddress) *Dot11Beacon {
	b := &Dot11Beacon{Interval: 100}
	b.Subtype = Dot11SubBeacon
	b.Addr1 = pdu.BroadcastHW
	b.Addr2 = src
	b.Addr3 = src
	return b
}

// ParseDot11Beacon dissects a beacon frame.
func ParseDot11Beacon(data []byte) (*Dot11Beacon, error) {
	in := stream.NewInput(data)
	b := &Dot11Beacon{}
	if err := b.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if b.Timestamp, err = in.ReadU64LE(); err != nil {
		return nil, fmt.Errorf("%w: beacon fixed fields", pdu.ErrMalformed)
	}
	if b.Interval, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: beacon fixed fields", pdu.ErrMalformed)
	}
	if b.Capability, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: beacon fixed fields", pdu.ErrMalformed)
	}
	if err := b.parseTags(in); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Dot11Beacon) Type() pdu.Type  { return pdu.TypeDot11Beacon }
func (b *Dot11Beacon) HeaderSize() int { return dot11MgmtHeaderSize + 12 + b.tagsSize() }

func (b *Dot11Beacon) Clone() pdu.PDU {
	c := *b
	b.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, b.CloneChild())
	return &c
}

func (b *Dot11Beacon) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:b.HeaderSize()])
	if err := b.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU64LE(b.Timestamp)
	out.WriteU16LE(b.Interval)
	if err := out.WriteU16LE(b.Capability); err != nil {
		return err
	}
	return b.writeTags(out)
}

// Dot11ProbeReq is a probe request (tagged parameters only).
type Dot11ProbeReq struct {
	dot11Mgmt
}

// ParseDot11ProbeReq dissects a probe request.
func ParseDot11ProbeReq(data []byte) (*Dot11ProbeReq, error) {
	in := stream.NewInput(data)
	p := &Dot11ProbeReq{}
	if err := p.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	if err := p.parseTags(in); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Dot11ProbeReq) Type() pdu.Type  { return pdu.TypeDot11ProbeReq }
func (p *Dot11ProbeReq) HeaderSize() int { return dot11MgmtHeaderSize + p.tagsSize() }

func (p *Dot11ProbeReq) Clone() pdu.PDU {
	c := *p
	p.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, p.CloneChild())
	return &c
}

func (p *Dot11ProbeReq) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:p.HeaderSize()])
	if err := p.writeMgmtHeader(out); err != nil {
		return err
	}
	return p.writeTags(out)
}

// Dot11ProbeResp is a probe response (same fixed fields as a beacon).
type Dot11ProbeResp struct {
	dot11Mgmt
	Timestamp uint64
	Interval  uint16
}

// ParseDot11ProbeResp dissects a probe response.
func ParseDot11ProbeResp(data []byte) (*Dot11ProbeResp, error) {
	in := stream.NewInput(data)
	p := &Dot11ProbeResp{}
	if err := p.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if p.Timestamp, err = in.ReadU64LE(); err != nil {
		return nil, fmt.Errorf("%w: probe response fixed fields", pdu.ErrMalformed)
	}
	if p.Interval, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: probe response fixed fields", pdu.ErrMalformed)
	}
	if p.Capability, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: probe response fixed fields", pdu.ErrMalformed)
	}
	if err := p.parseTags(in); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Dot11ProbeResp) Type() pdu.Type  { return pdu.TypeDot11ProbeResp }
func (p *Dot11ProbeResp) HeaderSize() int { return dot11MgmtHeaderSize + 12 + p.tagsSize() }

func (p *Dot11ProbeResp) Clone() pdu.PDU {
	c := *p
	p.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, p.CloneChild())
	return &c
}

func (p *Dot11ProbeResp) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:p.HeaderSize()])
	if err := p.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU64LE(p.Timestamp)
	out.WriteU16LE(p.Interval)
	if err := out.WriteU16LE(p.Capability); err != nil {
		return err
	}
	return p.writeTags(out)
}

// Dot11AssocReq is an association request.
type Dot11AssocReq struct {
	dot11Mgmt
	ListenInterval uint16
}

// ParseDot11AssocReq dissects an association request.
func ParseDot11AssocReq(data []byte) (*Dot11AssocReq, error) {
	in := stream.NewInput(data)
	a := &Dot11AssocReq{}
	if err := a.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if a.Capability, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: assoc request fixed fields", pdu.ErrMalformed)
	}
	if a.ListenInterval, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: assoc request fixed fields", pdu.ErrMalformed)
	}
	if err := a.parseTags(in); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Dot11AssocReq) Type() pdu.Type  { return pdu.TypeDot11AssocReq }
func (a *Dot11AssocReq) HeaderSize() int { return dot11MgmtHeaderSize + 4 + a.tagsSize() }

func (a *Dot11AssocReq) Clone() pdu.PDU {
	c := *a
	a.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *Dot11AssocReq) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:a.HeaderSize()])
	if err := a.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU16LE(a.Capability)
	if err := out.WriteU16LE(a.ListenInterval); err != nil {
		return err
	}
	return a.writeTags(out)
}

// Dot11AssocResp is an association (or reassociation) response.
type Dot11AssocResp struct {
	dot11Mgmt
	StatusCode uint16
	AID        uint16

	reassoc bool
}

// ParseDot11AssocResp dissects an association response.
func ParseDot11AssocResp(data []byte) (*Dot11AssocResp, error) {
	return parseAssocResp(data, false)
}

// ParseDot11ReassocResp dissects a reassociation response.
func ParseDot11ReassocResp(data []byte) (*Dot11AssocResp, error) {
	return parseAssocResp(data, true)
}

func parseAssocResp(data []byte, reassoc bool) (*Dot11AssocResp, error) {
	in := stream.NewInput(data)
	a := &Dot11AssocResp{reassoc: reassoc}
	if err := a.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if a.Capability, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: assoc response fixed fields", pdu.ErrMalformed)
	}
	if a.StatusCode, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: assoc response fixed fields", pdu.ErrMalformed)
	}
	if a.AID, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: assoc response fixed fields", pdu.ErrMalformed)
	}
	if err := a.parseTags(in); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Dot11AssocResp) Type() pdu.Type {
	if a.reassoc {
		return pdu.TypeDot11ReassocResp
	}
	return pdu.TypeDot11AssocResp
}

func (a *Dot11AssocResp) HeaderSize() int { return dot11MgmtHeaderSize + 6 + a.tagsSize() }

func (a *Dot11AssocResp) Clone() pdu.PDU {
	c := *a
	a.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *Dot11AssocResp) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:a.HeaderSize()])
	if err := a.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU16LE(a.Capability)
	out.WriteU16LE(a.StatusCode)
	if err := out.WriteU16LE(a.AID); err != nil {
		return err
	}
	return a.writeTags(out)
}

// Dot11ReassocReq is a reassociation request.
type Dot11ReassocReq struct {
	dot11Mgmt
	ListenInterval uint16
	CurrentAP      pdu.HWAddress
}

// ParseDot11ReassocReq dissects a reassociation request.
func ParseDot11ReassocReq(data []byte) (*Dot11ReassocReq, error) {
	in := stream.NewInput(data)
	r := &Dot11ReassocReq{}
	if err := r.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if r.Capability, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: reassoc request fixed fields", pdu.ErrMalformed)
	}
	if r.ListenInterval, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: reassoc request fixed fields", pdu.ErrMalformed)
	}
	b, err := in.ReadBytes(6)
	if err != nil {
		return nil, fmt.Errorf("%w: reassoc request fixed fields", pdu.ErrMalformed)
	}
	copy(r.CurrentAP[:], b)
	if err := r.parseTags(in); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Dot11ReassocReq) Type() pdu.Type  { return pdu.TypeDot11ReassocReq }
func (r *Dot11ReassocReq) HeaderSize() int { return dot11MgmtHeaderSize + 10 + r.tagsSize() }

func (r *Dot11ReassocReq) Clone() pdu.PDU {
	c := *r
	r.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, r.CloneChild())
	return &c
}

func (r *Dot11ReassocReq) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:r.HeaderSize()])
	if err := r.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU16LE(r.Capability)
	out.WriteU16LE(r.ListenInterval)
	if err := out.WriteBytes(r.CurrentAP[:]); err != nil {
		return err
	}
	return r.writeTags(out)
}

// Dot11Auth is an authentication frame.
type Dot11Auth struct {
	dot11Mgmt
	Algorithm  uint16
	AuthSeq    uint16
	StatusCode uint16
}

// ParseDot11Auth dissects an authentication frame.
func ParseDot11Auth(data []byte) (*Dot11Auth, error) {
	in := stream.NewInput(data)
	a := &Dot11Auth{}
	if err := a.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if a.Algorithm, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: auth fixed fields", pdu.ErrMalformed)
	}
	if a.AuthSeq, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: auth fixed fields", pdu.ErrMalformed)
	}
	if a.StatusCode, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: auth fixed fields", pdu.ErrMalformed)
	}
	if err := a.parseTags(in); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Dot11Auth) Type() pdu.Type  { return pdu.TypeDot11Auth }
func (a *Dot11Auth) HeaderSize() int { return dot11MgmtHeaderSize + 6 + a.tagsSize() }

func (a *Dot11Auth) Clone() pdu.PDU {
	c := *a
	a.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *Dot11Auth) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:a.HeaderSize()])
	if err := a.writeMgmtHeader(out); err != nil {
		return err
	}
	out.WriteU16LE(a.Algorithm)
	out.WriteU16LE(a.AuthSeq)
	if err := out.WriteU16LE(a.StatusCode); err != nil {
		return err
	}
	return a.writeTags(out)
}

// Dot11Deauth is a deauthentication (or disassociation) frame.
type Dot11Deauth struct {
	dot11Mgmt
	Reason uint16

	disassoc bool
}

// ParseDot11Deauth dissects a deauthentication frame.
func ParseDot11Deauth(data []byte) (*Dot11Deauth, error) {
	return parseDeauth(data, false)
}

// ParseDot11Disassoc dissects a disassociation frame.
func ParseDot11Disassoc(data []byte) (*Dot11Deauth, error) {
	return parseDeauth(data, true)
}

func parseDeauth(data []byte, disassoc bool) (*Dot11Deauth, error) {
	in := stream.NewInput(data)
	d := &Dot11Deauth{disassoc: disassoc}
	if err := d.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if d.Reason, err = in.ReadU16LE(); err != nil {
		return nil, fmt.Errorf("%w: deauth reason code", pdu.ErrMalformed)
	}
	return d, nil
}

func (d *Dot11Deauth) Type() pdu.Type {
	if d.disassoc {
		return pdu.TypeDot11Disassoc
	}
	return pdu.TypeDot11Deauth
}

func (d *Dot11Deauth) HeaderSize() int { return dot11MgmtHeaderSize + 2 }

func (d *Dot11Deauth) Clone() pdu.PDU {
	c := *d
	d.cloneInto(&c.dot11Mgmt)
	pdu.Adopt(&c, d.CloneChild())
	return &c
}

func (d *Dot11Deauth) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:d.HeaderSize()])
	if err := d.writeMgmtHeader(out); err != nil {
		return err
	}
	return out.WriteU16LE(d.Reason)
}

// Dot11Action is an action frame: a category byte plus opaque action
// detail.
type Dot11Action struct {
	dot11Mgmt
	Category uint8
	Detail   []byte
}

// ParseDot11Action dissects an action frame.
func ParseDot11Action(data []byte) (*Dot11Action, error) {
	in := stream.NewInput(data)
	a := &Dot11Action{}
	if err := a.parseMgmtHeader(in); err != nil {
		return nil, err
	}
	var err error
	if a.Category, err = in.ReadU8(); err != nil {
		return nil, fmt.Errorf("%w: action category", pdu.ErrMalformed)
	}
	a.Detail = append([]byte{}, in.Peek()...)
	return a, nil
}

func (a *Dot11Action) Type() pdu.Type  { return pdu.TypeDot11Action }
func (a *Dot11Action) HeaderSize() int { return dot11MgmtHeaderSize + 1 + len(a.Detail) }

func (a *Dot11Action) Clone() pdu.PDU {
	c := *a
	a.cloneInto(&c.dot11Mgmt)
	c.Detail = append([]byte{}, a.Detail...)
	pdu.Adopt(&c, a.CloneChild())
	return &c
}

func (a *Dot11Action) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:a.HeaderSize()])
	if err := a.writeMgmtHeader(out); err != nil {
		return err
	}
	if err := out.WriteU8(a.Category); err != nil {
		return err
	}
	return out.WriteBytes(a.Detail)
}

func parseDot11Mgmt(subtype uint8, data []byte) (pdu.PDU, error) {
	switch subtype {
	case Dot11SubBeacon:
		return ParseDot11Beacon(data)
	case Dot11SubProbeReq:
		return ParseDot11ProbeReq(data)
	case Dot11SubProbeResp:
		return ParseDot11ProbeResp(data)
	case Dot11SubAssocReq:
		return ParseDot11AssocReq(data)
	case Dot11SubAssocResp:
		return ParseDot11AssocResp(data)
	case Dot11SubReassocReq:
		return ParseDot11ReassocReq(data)
	case Dot11SubReassocResp:
		return ParseDot11ReassocResp(data)
	case Dot11SubAuth:
		return ParseDot11Auth(data)
	case Dot11SubDeauth:
		return ParseDot11Deauth(data)
	case Dot11SubDisassoc:
		return ParseDot11Disassoc(data)
	case Dot11SubAction:
		return ParseDot11Action(data)
	}
	return nil, fmt.Errorf("%w: 802.11 management subtype %d", pdu.ErrMalformed, subtype)
}
