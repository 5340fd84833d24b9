package layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// DHCPv6 message types.
const (
	DHCPv6Solicit     uint8 = 1
	DHCPv6Advertise   uint8 = 2
	DHCPv6Request     uint8 = 3
	DHCPv6Confirm     uint8 = 4
	DHCPv6Renew       uint8 = 5
	DHCPv6Rebind      uint8 = 6
	DHCPv6Reply       uint8 = 7
	DHCPv6Release     uint8 = 8
	DHCPv6Decline     uint8 = 9
	DHCPv6Reconfigure uint8 = 10
	DHCPv6InfoRequest uint8 = 11
	DHCPv6RelayForw   uint8 = 12
	DHCPv6RelayRepl   uint8 = 13
)

// DHCPv6 option codes.
const (
	DHCPv6OptClientID     uint16 = 1
	DHCPv6OptServerID     uint16 = 2
	DHCPv6OptIANA         uint16 = 3
	DHCPv6OptIATA         uint16 = 4
	DHCPv6OptIAAddr       uint16 = 5
	DHCPv6OptORO          uint16 = 6
	DHCPv6OptPreference   uint16 = 7
	DHCPv6OptElapsedTime  uint16 = 8
	DHCPv6OptRelayMsg     uint16 = 9
	DHCPv6OptAuth         uint16 = 11
	DHCPv6OptUnicast      uint16 = 12
	DHCPv6OptStatusCode   uint16 = 13
	DHCPv6OptRapidCommit  uint16 = 14
	DHCPv6OptUserClass    uint16 = 15
	DHCPv6OptVendorClass  uint16 = 16
	DHCPv6OptVendorOpts   uint16 = 17
	DHCPv6OptInterfaceID  uint16 = 18
	DHCPv6OptReconfMsg    uint16 = 19
	DHCPv6OptReconfAccept uint16 = 20
)

// DUID types.
const (
	DUIDLLT uint16 = 1
	DUIDEN  uint16 = 2
	DUIDLL  uint16 = 3
)

// DUID is a DHCPv6 unique identifier: the type selector plus the
// type-specific body.
type DUID struct {
	DType uint16
	Data  []byte
}

// NewDUIDLL builds a link-layer DUID for an Ethernet address.
func NewDUIDLL(hw pdu.HWAddress) DUID {
	data := make([]byte, 2, 8)
	binary.BigEndian.PutUint16(data, 1) // hardware type: Ethernet
	return DUID{DType: DUIDLL, Data: append(data, hw[:]...)}
}

// NewDUIDLLT builds a link-layer-plus-time DUID.
func NewDUIDLLT(hw pdu.HWAddress, t uint32) DUID {
	data := make([]byte, 6, 12)
	binary.BigEndian.PutUint16(data, 1)
	binary.BigEndian.PutUint32(data[2:], t)
	return DUID{DType: DUIDLLT, Data: append(data, hw[:]...)}
}

// NewDUIDEN builds an enterprise-number DUID.
func NewDUIDEN(enterprise uint32, id []byte) DUID {
	data := binary.BigEndian.AppendUint32(nil, enterprise)
	return DUID{DType: DUIDEN, Data: append(data, id...)}
}

func (d DUID) encode() []byte {
	return append(binary.BigEndian.AppendUint16(nil, d.DType), d.Data...)
}

func decodeDUID(data []byte) (DUID, bool) {
	if len(data) < 2 {
		return DUID{}, false
	}
	return DUID{DType: binary.BigEndian.Uint16(data), Data: data[2:]}, true
}

// DHCPv6StatusCode is the decoded status-code option.
type DHCPv6StatusCode struct {
	Code    uint16
	Message string
}

// DHCPv6IANA is the decoded non-temporary-address association option:
// the association ID, the T1/T2 renewal timers and the raw sub-options
// (typically IA-address options).
type DHCPv6IANA struct {
	IAID    uint32
	T1      uint32
	T2      uint32
	Options []byte
}

// DHCPv6IATA is the decoded temporary-address association option.
type DHCPv6IATA struct {
	IAID    uint32
	Options []byte
}

// DHCPv6IAAddr is the decoded IA-address option carried inside IA_NA
// and IA_TA associations.
type DHCPv6IAAddr struct {
	Addr              netip.Addr
	PreferredLifetime uint32
	ValidLifetime     uint32
	Options           []byte
}

// DHCPv6Auth is the decoded authentication option.
type DHCPv6Auth struct {
	Protocol        uint8
	Algorithm       uint8
	RDM             uint8
	ReplayDetection uint64
	AuthInfo        []byte
}

// DHCPv6VendorClass is the decoded vendor-class option: the vendor's
// enterprise number plus its opaque class-data entries.
type DHCPv6VendorClass struct {
	EnterpriseNumber uint32
	Data             [][]byte
}

// DHCPv6VendorInfo is the decoded vendor-specific-information option.
type DHCPv6VendorInfo struct {
	EnterpriseNumber uint32
	Data             []byte
}

// encodeClassData frames each entry with its 2-byte length, the shared
// layout of user-class and vendor-class data.
func encodeClassData(entries [][]byte) []byte {
	var out []byte
	for _, e := range entries {
		out = binary.BigEndian.AppendUint16(out, uint16(len(e)))
		out = append(out, e...)
	}
	return out
}

func decodeClassData(data []byte) ([][]byte, bool) {
	var out [][]byte
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, false
		}
		l := int(binary.BigEndian.Uint16(data))
		if len(data) < 2+l {
			return nil, false
		}
		out = append(out, data[2:2+l])
		data = data[2+l:]
	}
	return out, true
}

// DHCPv6 is a DHCPv6 message. Client/server messages carry a 24-bit
// transaction ID; relay messages carry a hop count plus link and peer
// addresses.
type DHCPv6 struct {
	pdu.Base
	MsgType       uint8
	TransactionID uint32 // 24 bits, client/server messages
	HopCount      uint8  // relay messages
	LinkAddr      netip.Addr
	PeerAddr      netip.Addr
	Options       pdu.Options
}

// NewDHCPv6 builds a client/server message.
func NewDHCPv6(msgType uint8) *DHCPv6 {
	return &DHCPv6{MsgType: msgType}
}

// IsRelay reports whether this is a relay-forward or relay-reply
// message.
func (d *DHCPv6) IsRelay() bool {
	return d.MsgType == DHCPv6RelayForw || d.MsgType == DHCPv6RelayRepl
}

// ParseDHCPv6 dissects a DHCPv6 message.
func ParseDHCPv6(data []byte) (*DHCPv6, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: dhcpv6 header", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	d := &DHCPv6{}
	d.MsgType, _ = in.ReadU8()
	if d.IsRelay() {
		if !in.CanRead(33) {
			return nil, fmt.Errorf("%w: dhcpv6 relay header", pdu.ErrMalformed)
		}
		d.HopCount, _ = in.ReadU8()
		b, _ := in.ReadBytes(16)
		d.LinkAddr = netip.AddrFrom16([16]byte(b))
		b, _ = in.ReadBytes(16)
		d.PeerAddr = netip.AddrFrom16([16]byte(b))
	} else {
		b, _ := in.ReadBytes(3)
		d.TransactionID = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	for in.Remaining() > 0 {
		if !in.CanRead(4) {
			return nil, fmt.Errorf("%w: dhcpv6 option header", pdu.ErrMalformed)
		}
		code, _ := in.ReadU16()
		l, _ := in.ReadU16()
		if !in.CanRead(int(l)) {
			return nil, fmt.Errorf("%w: dhcpv6 option %d", pdu.ErrMalformed, code)
		}
		payload, _ := in.ReadBytes(int(l))
		d.Options.Add(code, payload)
	}
	return d, nil
}

func (d *DHCPv6) Type() pdu.Type { return pdu.TypeDHCPv6 }

func (d *DHCPv6) HeaderSize() int {
	n := 4
	if d.IsRelay() {
		n = 34
	}
	for _, o := range d.Options {
		n += 4 + len(o.Data)
	}
	return n
}

func (d *DHCPv6) Clone() pdu.PDU {
	c := *d
	c.Base = pdu.Base{}
	c.Options = d.Options.Clone()
	pdu.Adopt(&c, d.CloneChild())
	return &c
}

func (d *DHCPv6) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:d.HeaderSize()])
	out.WriteU8(d.MsgType)
	if d.IsRelay() {
		out.WriteU8(d.HopCount)
		la := d.LinkAddr.As16()
		out.WriteBytes(la[:])
		pa := d.PeerAddr.As16()
		out.WriteBytes(pa[:])
	} else {
		out.WriteU8(uint8(d.TransactionID >> 16))
		out.WriteU8(uint8(d.TransactionID >> 8))
		out.WriteU8(uint8(d.TransactionID))
	}
	for _, o := range d.Options {
		out.WriteU16(o.Kind)
		out.WriteU16(uint16(len(o.Data)))
		if err := out.WriteBytes(o.Data); err != nil {
			return err
		}
	}
	return nil
}

// ClientID returns the decoded client-identifier DUID.
func (d *DHCPv6) ClientID() (DUID, bool) {
	o, ok := d.Options.Find(DHCPv6OptClientID)
	if !ok {
		return DUID{}, false
	}
	return decodeDUID(o.Data)
}

// SetClientID adds a client-identifier option.
func (d *DHCPv6) SetClientID(id DUID) { d.Options.Add(DHCPv6OptClientID, id.encode()) }

// ServerID returns the decoded server-identifier DUID.
func (d *DHCPv6) ServerID() (DUID, bool) {
	o, ok := d.Options.Find(DHCPv6OptServerID)
	if !ok {
		return DUID{}, false
	}
	return decodeDUID(o.Data)
}

// SetServerID adds a server-identifier option.
func (d *DHCPv6) SetServerID(id DUID) { d.Options.Add(DHCPv6OptServerID, id.encode()) }

// IANA returns the decoded IA_NA option.
func (d *DHCPv6) IANA() (DHCPv6IANA, bool) {
	o, ok := d.Options.Find(DHCPv6OptIANA)
	if !ok || len(o.Data) < 12 {
		return DHCPv6IANA{}, false
	}
	return DHCPv6IANA{
		IAID:    binary.BigEndian.Uint32(o.Data),
		T1:      binary.BigEndian.Uint32(o.Data[4:]),
		T2:      binary.BigEndian.Uint32(o.Data[8:]),
		Options: o.Data[12:],
	}, true
}

// SetIANA adds an IA_NA option.
func (d *DHCPv6) SetIANA(ia DHCPv6IANA) {
	data := make([]byte, 0, 12+len(ia.Options))
	data = binary.BigEndian.AppendUint32(data, ia.IAID)
	data = binary.BigEndian.AppendUint32(data, ia.T1)
	data = binary.BigEndian.AppendUint32(data, ia.T2)
	d.Options.Add(DHCPv6OptIANA, append(data, ia.Options...))
}

// IATA returns the decoded IA_TA option.
func (d *DHCPv6) IATA() (DHCPv6IATA, bool) {
	o, ok := d.Options.Find(DHCPv6OptIATA)
	if !ok || len(o.Data) < 4 {
		return DHCPv6IATA{}, false
	}
	return DHCPv6IATA{IAID: binary.BigEndian.Uint32(o.Data), Options: o.Data[4:]}, true
}

// SetIATA adds an IA_TA option.
func (d *DHCPv6) SetIATA(ia DHCPv6IATA) {
	data := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(ia.Options)), ia.IAID)
	d.Options.Add(DHCPv6OptIATA, append(data, ia.Options...))
}

// IAAddr returns the decoded IA-address option.
func (d *DHCPv6) IAAddr() (DHCPv6IAAddr, bool) {
	o, ok := d.Options.Find(DHCPv6OptIAAddr)
	if !ok || len(o.Data) < 24 {
		return DHCPv6IAAddr{}, false
	}
	return DHCPv6IAAddr{
		Addr:              netip.AddrFrom16([16]byte(o.Data[:16])),
		PreferredLifetime: binary.BigEndian.Uint32(o.Data[16:]),
		ValidLifetime:     binary.BigEndian.Uint32(o.Data[20:]),
		Options:           o.Data[24:],
	}, true
}

// SetIAAddr adds an IA-address option.
func (d *DHCPv6) SetIAAddr(a DHCPv6IAAddr) {
	addr := a.Addr.As16()
	data := make([]byte, 0, 24+len(a.Options))
	data = append(data, addr[:]...)
	data = binary.BigEndian.AppendUint32(data, a.PreferredLifetime)
	data = binary.BigEndian.AppendUint32(data, a.ValidLifetime)
	d.Options.Add(DHCPv6OptIAAddr, append(data, a.Options...))
}

// OptionRequest returns the requested option codes (ORO).
func (d *DHCPv6) OptionRequest() ([]uint16, bool) {
	o, ok := d.Options.Find(DHCPv6OptORO)
	if !ok || len(o.Data)%2 != 0 {
		return nil, false
	}
	out := make([]uint16, len(o.Data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(o.Data[i*2:])
	}
	return out, true
}

// SetOptionRequest adds an option-request option.
func (d *DHCPv6) SetOptionRequest(codes []uint16) {
	data := make([]byte, 0, len(codes)*2)
	for _, c := range codes {
		data = binary.BigEndian.AppendUint16(data, c)
	}
	d.Options.Add(DHCPv6OptORO, data)
}

// Preference returns the preference option value.
func (d *DHCPv6) Preference() (uint8, bool) {
	o, ok := d.Options.Find(DHCPv6OptPreference)
	if !ok || len(o.Data) != 1 {
		return 0, false
	}
	return o.Data[0], true
}

// SetPreference adds a preference option.
func (d *DHCPv6) SetPreference(v uint8) { d.Options.Add(DHCPv6OptPreference, []byte{v}) }

// ElapsedTime returns the elapsed-time option in hundredths of a
// second.
func (d *DHCPv6) ElapsedTime() (uint16, bool) {
	o, ok := d.Options.Find(DHCPv6OptElapsedTime)
	if !ok || len(o.Data) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(o.Data), true
}

// SetElapsedTime adds an elapsed-time option.
func (d *DHCPv6) SetElapsedTime(v uint16) {
	d.Options.Add(DHCPv6OptElapsedTime, binary.BigEndian.AppendUint16(nil, v))
}

// RelayMessage returns the encapsulated message of a relay option.
func (d *DHCPv6) RelayMessage() (*DHCPv6, bool) {
	o, ok := d.Options.Find(DHCPv6OptRelayMsg)
	if !ok {
		return nil, false
	}
	inner, err := ParseDHCPv6(o.Data)
	if err != nil {
		return nil, false
	}
	return inner, true
}

// SetRelayMessage embeds msg as the relay-message option.
func (d *DHCPv6) SetRelayMessage(msg *DHCPv6) error {
	b, err := pdu.Serialize(msg)
	if err != nil {
		return err
	}
	d.Options.Add(DHCPv6OptRelayMsg, b)
	return nil
}

// Authentication returns the decoded authentication option.
func (d *DHCPv6) Authentication() (DHCPv6Auth, bool) {
	o, ok := d.Options.Find(DHCPv6OptAuth)
	if !ok || len(o.Data) < 11 {
		return DHCPv6Auth{}, false
	}
	return DHCPv6Auth{
		Protocol:        o.Data[0],
		Algorithm:       o.Data[1],
		RDM:             o.Data[2],
		ReplayDetection: binary.BigEndian.Uint64(o.Data[3:]),
		AuthInfo:        o.Data[11:],
	}, true
}

// SetAuthentication adds an authentication option.
func (d *DHCPv6) SetAuthentication(a DHCPv6Auth) {
	data := make([]byte, 0, 11+len(a.AuthInfo))
	data = append(data, a.Protocol, a.Algorithm, a.RDM)
	data = binary.BigEndian.AppendUint64(data, a.ReplayDetection)
	d.Options.Add(DHCPv6OptAuth, append(data, a.AuthInfo...))
}

// ServerUnicast returns the server-unicast address.
func (d *DHCPv6) ServerUnicast() (netip.Addr, bool) {
	o, ok := d.Options.Find(DHCPv6OptUnicast)
	if !ok || len(o.Data) != 16 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom16([16]byte(o.Data)), true
}

// SetServerUnicast adds a server-unicast option.
func (d *DHCPv6) SetServerUnicast(addr netip.Addr) {
	a := addr.As16()
	d.Options.Add(DHCPv6OptUnicast, a[:])
}

// StatusCode returns the decoded status-code option.
func (d *DHCPv6) StatusCode() (DHCPv6StatusCode, bool) {
	o, ok := d.Options.Find(DHCPv6OptStatusCode)
	if !ok || len(o.Data) < 2 {
		return DHCPv6StatusCode{}, false
	}
	return DHCPv6StatusCode{
		Code:    binary.BigEndian.Uint16(o.Data),
		Message: string(o.Data[2:]),
	}, true
}

// SetStatusCode adds a status-code option.
func (d *DHCPv6) SetStatusCode(code uint16, msg string) {
	data := binary.BigEndian.AppendUint16(nil, code)
	d.Options.Add(DHCPv6OptStatusCode, append(data, msg...))
}

// RapidCommit reports whether the rapid-commit option is present.
func (d *DHCPv6) RapidCommit() bool {
	_, ok := d.Options.Find(DHCPv6OptRapidCommit)
	return ok
}

// SetRapidCommit adds the empty rapid-commit option.
func (d *DHCPv6) SetRapidCommit() { d.Options.Add(DHCPv6OptRapidCommit, nil) }

// UserClass returns the user-class-data entries.
func (d *DHCPv6) UserClass() ([][]byte, bool) {
	o, ok := d.Options.Find(DHCPv6OptUserClass)
	if !ok {
		return nil, false
	}
	return decodeClassData(o.Data)
}

// SetUserClass adds a user-class option.
func (d *DHCPv6) SetUserClass(entries [][]byte) {
	d.Options.Add(DHCPv6OptUserClass, encodeClassData(entries))
}

// VendorClass returns the decoded vendor-class option.
func (d *DHCPv6) VendorClass() (DHCPv6VendorClass, bool) {
	o, ok := d.Options.Find(DHCPv6OptVendorClass)
	if !ok || len(o.Data) < 4 {
		return DHCPv6VendorClass{}, false
	}
	entries, ok := decodeClassData(o.Data[4:])
	if !ok {
		return DHCPv6VendorClass{}, false
	}
	return DHCPv6VendorClass{
		EnterpriseNumber: binary.BigEndian.Uint32(o.Data),
		Data:             entries,
	}, true
}

// SetVendorClass adds a vendor-class option.
func (d *DHCPv6) SetVendorClass(vc DHCPv6VendorClass) {
	data := binary.BigEndian.AppendUint32(nil, vc.EnterpriseNumber)
	d.Options.Add(DHCPv6OptVendorClass, append(data, encodeClassData(vc.Data)...))
}

// VendorInfo returns the decoded vendor-specific-information option.
func (d *DHCPv6) VendorInfo() (DHCPv6VendorInfo, bool) {
	o, ok := d.Options.Find(DHCPv6OptVendorOpts)
	if !ok || len(o.Data) < 4 {
		return DHCPv6VendorInfo{}, false
	}
	return DHCPv6VendorInfo{
		EnterpriseNumber: binary.BigEndian.Uint32(o.Data),
		Data:             o.Data[4:],
	}, true
}

// SetVendorInfo adds a vendor-specific-information option.
func (d *DHCPv6) SetVendorInfo(vi DHCPv6VendorInfo) {
	data := binary.BigEndian.AppendUint32(nil, vi.EnterpriseNumber)
	d.Options.Add(DHCPv6OptVendorOpts, append(data, vi.Data...))
}

// InterfaceID returns the interface-id option payload.
func (d *DHCPv6) InterfaceID() ([]byte, bool) {
	o, ok := d.Options.Find(DHCPv6OptInterfaceID)
	if !ok {
		return nil, false
	}
	return o.Data, true
}

// SetInterfaceID adds an interface-id option.
func (d *DHCPv6) SetInterfaceID(id []byte) { d.Options.Add(DHCPv6OptInterfaceID, id) }

// ReconfigureMsg returns the reconfigure-message type.
func (d *DHCPv6) ReconfigureMsg() (uint8, bool) {
	o, ok := d.Options.Find(DHCPv6OptReconfMsg)
	if !ok || len(o.Data) != 1 {
		return 0, false
	}
	return o.Data[0], true
}

// SetReconfigureMsg adds a reconfigure-message option.
func (d *DHCPv6) SetReconfigureMsg(t uint8) { d.Options.Add(DHCPv6OptReconfMsg, []byte{t}) }

// ReconfigureAccept reports whether the reconfigure-accept option is
// present.
func (d *DHCPv6) ReconfigureAccept() bool {
	_, ok := d.Options.Find(DHCPv6OptReconfAccept)
	return ok
}

// SetReconfigureAccept adds the empty reconfigure-accept option.
func (d *DHCPv6) SetReconfigureAccept() { d.Options.Add(DHCPv6OptReconfAccept, nil) }
