// Package sender transmits crafted packets and polls for their
// responses. L2 frames go out through a libpcap handle on a specific
// interface; L3 packets ride a raw IP socket and let the kernel
// route.
package sender

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket/pcap"
	"golang.org/x/net/ipv4"

	"firestige.xyz/strix/pkg/pdu"
)

// minEthernetFrame is the minimum Ethernet frame size (FCS excluded); shorter
// frames are zero-padded here, not by the dissectors.
const minEthernetFrame = 60

// Sender transmits packets and receives matched responses.
type Sender interface {
	// SendL2 injects a link-layer frame on the interface.
	SendL2(p pdu.PDU) error
	// SendL3 sends a network-layer packet to dst via a raw socket.
	SendL3(p pdu.PDU, dst netip.Addr) error
	// Recv blocks until a frame matching matcher arrives or the
	// timeout elapses (nil on timeout).
	Recv(matcher pdu.PDU, timeout time.Duration) ([]byte, error)
	// Close releases the underlying handles.
	Close() error
}

// PacketSender is the libpcap-backed Sender.
type PacketSender struct {
	iface  string
	handle *pcap.Handle
}

// New opens the interface for injection and response capture.
func New(iface string) (*PacketSender, error) {
	if iface == "" {
		return nil, fmt.Errorf("%w: interface is required", pdu.ErrInvalidInterface)
	}
	handle, err := pcap.OpenLive(iface, 65535, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", pdu.ErrInvalidInterface, iface, err)
	}
	return &PacketSender{iface: iface, handle: handle}, nil
}

// SendL2 serializes p and injects it, padding to the Ethernet
// minimum.
func (s *PacketSender) SendL2(p pdu.PDU) error {
	data, err := pdu.Serialize(p)
	if err != nil {
		return err
	}
	if len(data) < minEthernetFrame {
		padded := make([]byte, minEthernetFrame)
		copy(padded, data)
		data = padded
	}
	if err := s.handle.WritePacketData(data); err != nil {
		return fmt.Errorf("%w: inject on %s: %v", pdu.ErrInvalidInterface, s.iface, err)
	}
	return nil
}

// SendL3 serializes p and writes it to a raw IP socket addressed at
// dst. The kernel fills the route and the link layer.
func (s *PacketSender) SendL3(p pdu.PDU, dst netip.Addr) error {
	data, err := pdu.Serialize(p)
	if err != nil {
		return err
	}
	if !dst.Is4() {
		return fmt.Errorf("%w: L3 send supports IPv4 destinations", pdu.ErrInvalidArgument)
	}
	conn, err := net.ListenPacket("ip4:ip", "")
	if err != nil {
		return fmt.Errorf("%w: raw socket: %v", pdu.ErrInvalidInterface, err)
	}
	defer conn.Close()
	raw, err := ipv4.NewRawConn(conn)
	if err != nil {
		return fmt.Errorf("%w: raw conn: %v", pdu.ErrInvalidInterface, err)
	}
	if len(data) < ipv4.HeaderLen {
		return fmt.Errorf("%w: packet below IPv4 header size", pdu.ErrSerialize)
	}
	hdr, err := ipv4.ParseHeader(data)
	if err != nil {
		return fmt.Errorf("%w: not an IPv4 packet: %v", pdu.ErrSerialize, err)
	}
	hdr.Dst = net.IP(dst.AsSlice())
	return raw.WriteTo(hdr, data[hdr.Len:], nil)
}

// Recv reads frames until one satisfies matcher.MatchesResponse.
// Outer layers delegate the match to their children, so passing the
// sent packet's root matches full frames.
func (s *PacketSender) Recv(matcher pdu.PDU, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, _, err := s.handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			return nil, fmt.Errorf("%w: read on %s: %v", pdu.ErrInvalidInterface, s.iface, err)
		}
		if matcher.MatchesResponse(data) {
			return data, nil
		}
	}
	return nil, nil
}

// Close releases the capture handle.
func (s *PacketSender) Close() error {
	s.handle.Close()
	return nil
}
