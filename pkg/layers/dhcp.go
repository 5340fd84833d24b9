package layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// BOOTP opcodes.
const (
	BootRequest uint8 = 1
	BootReply   uint8 = 2
)

// DHCP message types (option 53).
const (
	DHCPDiscover uint8 = 1
	DHCPOffer    uint8 = 2
	DHCPRequest  uint8 = 3
	DHCPDecline  uint8 = 4
	DHCPACK      uint8 = 5
	DHCPNAK      uint8 = 6
	DHCPRelease  uint8 = 7
	DHCPInform   uint8 = 8
)

// DHCP option codes used by the typed helpers.
const (
	DHCPOptPad         uint16 = 0
	DHCPOptSubnetMask  uint16 = 1
	DHCPOptRouters     uint16 = 3
	DHCPOptDNSServers  uint16 = 6
	DHCPOptDomainName  uint16 = 15
	DHCPOptBroadcast   uint16 = 28
	DHCPOptRequestedIP uint16 = 50
	DHCPOptLeaseTime   uint16 = 51
	DHCPOptMessageType uint16 = 53
	DHCPOptServerID    uint16 = 54
	DHCPOptRenewalTime uint16 = 58
	DHCPOptRebindTime  uint16 = 59
	DHCPOptEnd         uint16 = 255
)

const (
	bootpFrameSize  = 236
	dhcpMagicCookie = 0x63825363
)

// DHCP is a DHCPv4 message layered on the fixed BOOTP frame. Options
// are kept in insertion order; the END option is emitted automatically
// after the list (code 255 — the original implementation's end-option
// helper wrote a wrong code, which is not preserved here). Zero bytes
// trailing the END marker (minimum-size padding) survive round trips.
type DHCP struct {
	pdu.Base
	Opcode uint8
	HWType uint8
	HWLen  uint8
	Hops   uint8
	XID    uint32
	Secs   uint16
	Flags  uint16
	CIAddr netip.Addr
	YIAddr netip.Addr
	SIAddr netip.Addr
	GIAddr netip.Addr
	CHAddr [16]byte
	SName  [64]byte
	File   [128]byte

	Options pdu.Options
	tail    []byte
}

// NewDHCP builds an empty BOOTP request with Ethernet addressing.
func NewDHCP() *DHCP {
	zero := netip.AddrFrom4([4]byte{})
	return &DHCP{
		Opcode: BootRequest,
		HWType: 1,
		HWLen:  6,
		CIAddr: zero, YIAddr: zero, SIAddr: zero, GIAddr: zero,
	}
}

// ParseDHCP dissects a DHCP message: the BOOTP frame, the magic
// cookie, then the option run until END.
func ParseDHCP(data []byte) (*DHCP, error) {
	if len(data) < bootpFrameSize+4 {
		return nil, fmt.Errorf("%w: dhcp frame", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	d := &DHCP{}
	d.Opcode, _ = in.ReadU8()
	d.HWType, _ = in.ReadU8()
	d.HWLen, _ = in.ReadU8()
	d.Hops, _ = in.ReadU8()
	d.XID, _ = in.ReadU32()
	d.Secs, _ = in.ReadU16()
	d.Flags, _ = in.ReadU16()
	for _, addr := range []*netip.Addr{&d.CIAddr, &d.YIAddr, &d.SIAddr, &d.GIAddr} {
		b, _ := in.ReadBytes(4)
		*addr = netip.AddrFrom4([4]byte(b))
	}
	b, _ := in.ReadBytes(16)
	copy(d.CHAddr[:], b)
	b, _ = in.ReadBytes(64)
	copy(d.SName[:], b)
	b, _ = in.ReadBytes(128)
	copy(d.File[:], b)
	cookie, _ := in.ReadU32()
	if cookie != dhcpMagicCookie {
		return nil, fmt.Errorf("%w: dhcp magic cookie 0x%08x", pdu.ErrMalformed, cookie)
	}
	for in.Remaining() > 0 {
		code, _ := in.ReadU8()
		if code == uint8(DHCPOptPad) {
			continue
		}
		if code == uint8(DHCPOptEnd) {
			d.tail = append([]byte{}, in.Peek()...)
			break
		}
		l, err := in.ReadU8()
		if err != nil || !in.CanRead(int(l)) {
			return nil, fmt.Errorf("%w: dhcp option %d", pdu.ErrMalformed, code)
		}
		payload, _ := in.ReadBytes(int(l))
		d.Options.Add(uint16(code), payload)
	}
	return d, nil
}

func (d *DHCP) Type() pdu.Type { return pdu.TypeDHCP }

func (d *DHCP) HeaderSize() int {
	n := bootpFrameSize + 4 // frame + cookie
	for _, o := range d.Options {
		n += 2 + len(o.Data)
	}
	return n + 1 + len(d.tail) // END + padding
}

func (d *DHCP) Clone() pdu.PDU {
	c := *d
	c.Base = pdu.Base{}
	c.Options = d.Options.Clone()
	c.tail = append([]byte{}, d.tail...)
	pdu.Adopt(&c, d.CloneChild())
	return &c
}

func (d *DHCP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:d.HeaderSize()])
	out.WriteU8(d.Opcode)
	out.WriteU8(d.HWType)
	out.WriteU8(d.HWLen)
	out.WriteU8(d.Hops)
	out.WriteU32(d.XID)
	out.WriteU16(d.Secs)
	out.WriteU16(d.Flags)
	for _, addr := range []netip.Addr{d.CIAddr, d.YIAddr, d.SIAddr, d.GIAddr} {
		a := addr.As4()
		out.WriteBytes(a[:])
	}
	out.WriteBytes(d.CHAddr[:])
	out.WriteBytes(d.SName[:])
	out.WriteBytes(d.File[:])
	out.WriteU32(dhcpMagicCookie)
	for _, o := range d.Options {
		if len(o.Data) > 255 {
			return fmt.Errorf("%w: dhcp option %d too long", pdu.ErrSerialize, o.Kind)
		}
		out.WriteU8(uint8(o.Kind))
		out.WriteU8(uint8(len(o.Data)))
		if err := out.WriteBytes(o.Data); err != nil {
			return err
		}
	}
	if err := out.WriteU8(uint8(DHCPOptEnd)); err != nil {
		return err
	}
	return out.WriteBytes(d.tail)
}

// MessageType returns the option 53 value.
func (d *DHCP) MessageType() (uint8, bool) {
	o, ok := d.Options.Find(DHCPOptMessageType)
	if !ok || len(o.Data) != 1 {
		return 0, false
	}
	return o.Data[0], true
}

// SetMessageType adds option 53.
func (d *DHCP) SetMessageType(t uint8) { d.Options.Add(DHCPOptMessageType, []byte{t}) }

// ipOption decodes a single-address option.
func (d *DHCP) ipOption(code uint16) (netip.Addr, bool) {
	o, ok := d.Options.Find(code)
	if !ok || len(o.Data) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte(o.Data)), true
}

func (d *DHCP) addIPOption(code uint16, a netip.Addr) {
	b := a.As4()
	d.Options.Add(code, b[:])
}

// ipListOption decodes a multi-address option.
func (d *DHCP) ipListOption(code uint16) ([]netip.Addr, bool) {
	o, ok := d.Options.Find(code)
	if !ok || len(o.Data) == 0 || len(o.Data)%4 != 0 {
		return nil, false
	}
	out := make([]netip.Addr, len(o.Data)/4)
	for i := range out {
		out[i] = netip.AddrFrom4([4]byte(o.Data[i*4 : i*4+4]))
	}
	return out, true
}

func (d *DHCP) addIPListOption(code uint16, addrs []netip.Addr) {
	data := make([]byte, 0, len(addrs)*4)
	for _, a := range addrs {
		b := a.As4()
		data = append(data, b[:]...)
	}
	d.Options.Add(code, data)
}

// u32Option decodes a 32-bit seconds option.
func (d *DHCP) u32Option(code uint16) (uint32, bool) {
	o, ok := d.Options.Find(code)
	if !ok || len(o.Data) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(o.Data), true
}

func (d *DHCP) addU32Option(code uint16, v uint32) {
	d.Options.Add(code, binary.BigEndian.AppendUint32(nil, v))
}

// Typed option helpers.

func (d *DHCP) ServerID() (netip.Addr, bool)    { return d.ipOption(DHCPOptServerID) }
func (d *DHCP) SetServerID(a netip.Addr)        { d.addIPOption(DHCPOptServerID, a) }
func (d *DHCP) RequestedIP() (netip.Addr, bool) { return d.ipOption(DHCPOptRequestedIP) }
func (d *DHCP) SetRequestedIP(a netip.Addr)     { d.addIPOption(DHCPOptRequestedIP, a) }
func (d *DHCP) SubnetMask() (netip.Addr, bool)  { return d.ipOption(DHCPOptSubnetMask) }
func (d *DHCP) SetSubnetMask(a netip.Addr)      { d.addIPOption(DHCPOptSubnetMask, a) }
func (d *DHCP) Broadcast() (netip.Addr, bool)   { return d.ipOption(DHCPOptBroadcast) }
func (d *DHCP) SetBroadcast(a netip.Addr)       { d.addIPOption(DHCPOptBroadcast, a) }

func (d *DHCP) Routers() ([]netip.Addr, bool)    { return d.ipListOption(DHCPOptRouters) }
func (d *DHCP) SetRouters(a []netip.Addr)        { d.addIPListOption(DHCPOptRouters, a) }
func (d *DHCP) DNSServers() ([]netip.Addr, bool) { return d.ipListOption(DHCPOptDNSServers) }
func (d *DHCP) SetDNSServers(a []netip.Addr)     { d.addIPListOption(DHCPOptDNSServers, a) }

func (d *DHCP) LeaseTime() (uint32, bool)   { return d.u32Option(DHCPOptLeaseTime) }
func (d *DHCP) SetLeaseTime(secs uint32)    { d.addU32Option(DHCPOptLeaseTime, secs) }
func (d *DHCP) RenewalTime() (uint32, bool) { return d.u32Option(DHCPOptRenewalTime) }
func (d *DHCP) SetRenewalTime(secs uint32)  { d.addU32Option(DHCPOptRenewalTime, secs) }
func (d *DHCP) RebindTime() (uint32, bool)  { return d.u32Option(DHCPOptRebindTime) }
func (d *DHCP) SetRebindTime(secs uint32)   { d.addU32Option(DHCPOptRebindTime, secs) }

// DomainName returns the option 15 value.
func (d *DHCP) DomainName() (string, bool) {
	o, ok := d.Options.Find(DHCPOptDomainName)
	if !ok {
		return "", false
	}
	return string(o.Data), true
}

// SetDomainName adds option 15.
func (d *DHCP) SetDomainName(name string) { d.Options.Add(DHCPOptDomainName, []byte(name)) }
