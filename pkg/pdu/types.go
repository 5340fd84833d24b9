package pdu

// Type tags every concrete layer. Tags drive downcasting, matching and
// the next-protocol resolution performed during serialization.
type Type uint16

const (
	TypeRaw Type = iota
	TypeEthernetII
	TypeIP
	TypeIPv6
	TypeTCP
	TypeUDP
	TypeARP
	TypeICMP
	TypeICMPv6
	TypeDNS
	TypeDot1Q
	TypeDot1AD
	TypePPPoE
	TypeMPLS
	TypeLLC
	TypeSNAP
	TypeSTP
	TypeDHCP
	TypeDHCPv6
	TypeRadioTap
	TypeDot11
	TypeDot11Beacon
	TypeDot11ProbeReq
	TypeDot11ProbeResp
	TypeDot11AssocReq
	TypeDot11AssocResp
	TypeDot11ReassocReq
	TypeDot11ReassocResp
	TypeDot11Auth
	TypeDot11Deauth
	TypeDot11Action
	TypeDot11Disassoc
	TypeDot11Control
	TypeDot11RTS
	TypeDot11CTS
	TypeDot11ACK
	TypeDot11PSPoll
	TypeDot11CFEnd
	TypeDot11CFEndACK
	TypeDot11BlockAckReq
	TypeDot11BlockAck
	TypeDot11Data
	TypeDot11QoSData
	TypeEAPOLRC4
	TypeEAPOLRSN
	TypeBFD
	TypeRTP
	TypeVXLAN
	TypeSLL
	TypeSLL2
	TypePKTAP
	TypeLoopback
	TypeUserDefined
)

var typeNames = map[Type]string{
	TypeRaw:              "RAW",
	TypeEthernetII:       "ETHERNET_II",
	TypeIP:               "IP",
	TypeIPv6:             "IPV6",
	TypeTCP:              "TCP",
	TypeUDP:              "UDP",
	TypeARP:              "ARP",
	TypeICMP:             "ICMP",
	TypeICMPv6:           "ICMPV6",
	TypeDNS:              "DNS",
	TypeDot1Q:            "DOT1Q",
	TypeDot1AD:           "DOT1AD",
	TypePPPoE:            "PPPOE",
	TypeMPLS:             "MPLS",
	TypeLLC:              "LLC",
	TypeSNAP:             "SNAP",
	TypeSTP:              "STP",
	TypeDHCP:             "DHCP",
	TypeDHCPv6:           "DHCPV6",
	TypeRadioTap:         "RADIOTAP",
	TypeDot11:            "DOT11",
	TypeDot11Beacon:      "DOT11_BEACON",
	TypeDot11ProbeReq:    "DOT11_PROBE_REQ",
	TypeDot11ProbeResp:   "DOT11_PROBE_RESP",
	TypeDot11AssocReq:    "DOT11_ASSOC_REQ",
	TypeDot11AssocResp:   "DOT11_ASSOC_RESP",
	TypeDot11ReassocReq:  "DOT11_REASSOC_REQ",
	TypeDot11ReassocResp: "DOT11_REASSOC_RESP",
	TypeDot11Auth:        "DOT11_AUTH",
	TypeDot11Deauth:      "DOT11_DEAUTH",
	TypeDot11Action:      "DOT11_ACTION",
	TypeDot11Disassoc:    "DOT11_DISASSOC",
	TypeDot11Control:     "DOT11_CONTROL",
	TypeDot11RTS:         "DOT11_RTS",
	TypeDot11CTS:         "DOT11_CTS",
	TypeDot11ACK:         "DOT11_ACK",
	TypeDot11PSPoll:      "DOT11_PS_POLL",
	TypeDot11CFEnd:       "DOT11_CF_END",
	TypeDot11CFEndACK:    "DOT11_CF_END_ACK",
	TypeDot11BlockAckReq: "DOT11_BLOCK_ACK_REQ",
	TypeDot11BlockAck:    "DOT11_BLOCK_ACK",
	TypeDot11Data:        "DOT11_DATA",
	TypeDot11QoSData:     "DOT11_QOS_DATA",
	TypeEAPOLRC4:         "EAPOL_RC4",
	TypeEAPOLRSN:         "EAPOL_RSN",
	TypeBFD:              "BFD",
	TypeRTP:              "RTP",
	TypeVXLAN:            "VXLAN",
	TypeSLL:              "SLL",
	TypeSLL2:             "SLL2",
	TypePKTAP:            "PKTAP",
	TypeLoopback:         "LOOPBACK",
	TypeUserDefined:      "USER_DEFINED",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// supertypes maps each subclass tag to the tag it also matches.
// Matching is transitive: DOT11_BEACON matches DOT11.
var supertypes = map[Type]Type{
	TypeDot11Beacon:      TypeDot11,
	TypeDot11ProbeReq:    TypeDot11,
	TypeDot11ProbeResp:   TypeDot11,
	TypeDot11AssocReq:    TypeDot11,
	TypeDot11AssocResp:   TypeDot11,
	TypeDot11ReassocReq:  TypeDot11,
	TypeDot11ReassocResp: TypeDot11,
	TypeDot11Auth:        TypeDot11,
	TypeDot11Deauth:      TypeDot11,
	TypeDot11Action:      TypeDot11,
	TypeDot11Disassoc:    TypeDot11,
	TypeDot11Control:     TypeDot11,
	TypeDot11RTS:         TypeDot11Control,
	TypeDot11CTS:         TypeDot11Control,
	TypeDot11ACK:         TypeDot11Control,
	TypeDot11PSPoll:      TypeDot11Control,
	TypeDot11CFEnd:       TypeDot11Control,
	TypeDot11CFEndACK:    TypeDot11Control,
	TypeDot11BlockAckReq: TypeDot11Control,
	TypeDot11BlockAck:    TypeDot11Control,
	TypeDot11Data:        TypeDot11,
	TypeDot11QoSData:     TypeDot11Data,
	TypeDot1AD:           TypeDot1Q,
}

// MatchesFlag reports whether tag is t or one of t's supertypes.
func MatchesFlag(t, tag Type) bool {
	for cur := t; ; {
		if cur == tag {
			return true
		}
		next, ok := supertypes[cur]
		if !ok {
			return false
		}
		cur = next
	}
}
