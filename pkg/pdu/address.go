package pdu

import (
	"fmt"
	"net/netip"
	"strings"
)

// HWAddress is a 48-bit hardware address (Ethernet, 802.11).
type HWAddress [6]byte

// BroadcastHW is ff:ff:ff:ff:ff:ff.
var BroadcastHW = HWAddress{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseHW parses the textual "xx:xx:xx:xx:xx:xx" form. Parsing is
// strict: exactly six colon-separated hex octets.
func ParseHW(s string) (HWAddress, error) {
	var a HWAddress
	if err := parseHWInto(s, a[:]); err != nil {
		return HWAddress{}, err
	}
	return a, nil
}

// MustHW is ParseHW for constants in tests and examples; it panics on
// malformed input.
func MustHW(s string) HWAddress {
	a, err := ParseHW(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a HWAddress) String() string { return formatHW(a[:]) }

// IsBroadcast reports whether a is the all-ones address.
func (a HWAddress) IsBroadcast() bool { return a == BroadcastHW }

// IsUnicast reports whether the group bit is clear.
func (a HWAddress) IsUnicast() bool { return a[0]&0x01 == 0 }

// HWAddress8 is a 64-bit hardware address (SLL2 link-layer addresses).
type HWAddress8 [8]byte

// ParseHW8 parses eight colon-separated hex octets.
func ParseHW8(s string) (HWAddress8, error) {
	var a HWAddress8
	if err := parseHWInto(s, a[:]); err != nil {
		return HWAddress8{}, err
	}
	return a, nil
}

func (a HWAddress8) String() string { return formatHW(a[:]) }

func parseHWInto(s string, dst []byte) error {
	parts := strings.Split(s, ":")
	if len(parts) != len(dst) {
		return fmt.Errorf("%w: hardware address %q: want %d octets", ErrInvalidArgument, s, len(dst))
	}
	for i, p := range parts {
		if len(p) != 2 {
			return fmt.Errorf("%w: hardware address %q: octet %d", ErrInvalidArgument, s, i)
		}
		hi, ok1 := hexVal(p[0])
		lo, ok2 := hexVal(p[1])
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: hardware address %q: octet %d", ErrInvalidArgument, s, i)
		}
		dst[i] = hi<<4 | lo
	}
	return nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func formatHW(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// ParseIPv4 parses strict dotted-decimal. Components above 255 or a
// wrong component count are rejected.
func ParseIPv4(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: IPv4 address %q", ErrInvalidArgument, s)
	}
	return a, nil
}

// ParseIPv6 parses the colon-hex form (zone-less).
func ParseIPv6(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is6() || a.Is4In6() || a.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("%w: IPv6 address %q", ErrInvalidArgument, s)
	}
	return a, nil
}

// MustIP parses either family, panicking on malformed input. Intended
// for constants in tests and examples.
func MustIP(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

// IPv4ToUint32 returns the address as a host-order integer: the dotted
// quad read as one big-endian number, so "192.168.0.1" becomes
// 0xC0A80001. This is the canonical integer form across the library.
func IPv4ToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Uint32ToIPv4 is the inverse of IPv4ToUint32.
func Uint32ToIPv4(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}
