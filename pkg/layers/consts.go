// Package layers implements the concrete protocol dissectors. Each
// layer parses from captured bytes, serializes byte-exactly, and
// registers itself in the pdu dispatch tables at init time.
package layers

// Ethertype values (IEEE 802 registry).
const (
	EtherTypeIP     uint16 = 0x0800
	EtherTypeARP    uint16 = 0x0806
	EtherTypeDot1Q  uint16 = 0x8100
	EtherTypeIPv6   uint16 = 0x86DD
	EtherTypeDot1AD uint16 = 0x88A8
	EtherTypeMPLS   uint16 = 0x8847
	EtherTypePPPoED uint16 = 0x8863
	EtherTypePPPoES uint16 = 0x8864
	EtherTypeEAPOL  uint16 = 0x888E
)

// IP protocol numbers (IANA).
const (
	IPProtoICMP   uint8 = 1
	IPProtoIPIP   uint8 = 4
	IPProtoTCP    uint8 = 6
	IPProtoUDP    uint8 = 17
	IPProtoIPv6   uint8 = 41
	IPProtoGRE    uint8 = 47
	IPProtoESP    uint8 = 50
	IPProtoAH     uint8 = 51
	IPProtoICMPv6 uint8 = 58
	IPProtoNoNext uint8 = 59
)

// pcap DLT codes for the link-type dispatch table.
const (
	DLTNull     = 0   // BSD loopback
	DLTEthernet = 1   // DLT_EN10MB
	DLTLoop     = 108 // OpenBSD loopback
	DLTDot11    = 105 // IEEE 802.11 without radio header
	DLTSLL      = 113 // Linux cooked capture v1
	DLTRadioTap = 127 // 802.11 plus radiotap
	DLTPKTAP    = 258 // Apple PKTAP
	DLTSLL2     = 276 // Linux cooked capture v2
)
