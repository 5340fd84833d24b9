package pdu

// Constructor parses one layer (and, recursively, its payload) out of
// data. Constructors return ErrMalformed-wrapped errors on truncated
// or inconsistent input.
type Constructor func(data []byte) (PDU, error)

// The dispatch tables. Populated once, by pkg/layers init()
// registration, and read-only afterwards; readers need no locks.
var (
	etherTypeTable = map[uint16]Constructor{}
	ipProtoTable   = map[uint8]Constructor{}
	linkTypeTable  = map[int]Constructor{}

	etherTypeOf = map[Type]uint16{}
	ipProtoOf   = map[Type]uint8{}
)

// RegisterEtherType binds an Ethertype value to a constructor and
// records the reverse mapping used for next-protocol back-patching.
func RegisterEtherType(et uint16, t Type, c Constructor) {
	etherTypeTable[et] = c
	if _, dup := etherTypeOf[t]; !dup && t != TypeRaw && t != TypeUserDefined {
		etherTypeOf[t] = et
	}
}

// RegisterIPProto binds an IP protocol number to a constructor and
// records the reverse mapping.
func RegisterIPProto(proto uint8, t Type, c Constructor) {
	ipProtoTable[proto] = c
	if _, dup := ipProtoOf[t]; !dup && t != TypeRaw && t != TypeUserDefined {
		ipProtoOf[t] = proto
	}
}

// RegisterLinkType binds a pcap DLT code to the root dissector for
// captures taken on that link type.
func RegisterLinkType(dlt int, c Constructor) {
	linkTypeTable[dlt] = c
}

// EtherTypeOf returns the Ethertype a parent should advertise for a
// child of tag t, if one is registered.
func EtherTypeOf(t Type) (uint16, bool) {
	et, ok := etherTypeOf[t]
	return et, ok
}

// IPProtoOf returns the IP protocol number for a child of tag t.
func IPProtoOf(t Type) (uint8, bool) {
	p, ok := ipProtoOf[t]
	return p, ok
}

// InnerFromEtherType parses data with the constructor registered for
// et. A registry miss or a parse failure yields a Raw PDU so the outer
// chain stays usable; empty data yields nil.
func InnerFromEtherType(et uint16, data []byte) PDU {
	return inner(etherTypeTable[et], data)
}

// InnerFromIPProto parses data with the constructor registered for the
// IP protocol number, falling back to Raw.
func InnerFromIPProto(proto uint8, data []byte) PDU {
	return inner(ipProtoTable[proto], data)
}

func inner(c Constructor, data []byte) PDU {
	if len(data) == 0 {
		return nil
	}
	if c != nil {
		if p, err := c(data); err == nil {
			return p
		}
	}
	return NewRaw(data)
}

// FromLinkType parses a captured frame with the root dissector
// registered for the DLT code. An unknown DLT returns
// ErrUnknownProtocol; a root-level parse failure propagates.
func FromLinkType(dlt int, data []byte) (PDU, error) {
	c, ok := linkTypeTable[dlt]
	if !ok {
		return nil, ErrUnknownProtocol
	}
	return c(data)
}
