package pdu

import "time"

// Packet owns a PDU chain plus the capture timestamp (microsecond
// resolution preserved from the source). The zero value is an empty
// packet.
type Packet struct {
	root PDU
	ts   time.Time
}

// NewPacket wraps root with a timestamp.
func NewPacket(root PDU, ts time.Time) *Packet {
	return &Packet{root: root, ts: ts}
}

// Root returns the outermost layer.
func (p *Packet) Root() PDU { return p.root }

// Timestamp returns the capture time.
func (p *Packet) Timestamp() time.Time { return p.ts }

// Clone deep-copies the packet; the copy shares no state with p.
func (p *Packet) Clone() *Packet {
	var root PDU
	if p.root != nil {
		root = p.root.Clone()
	}
	return &Packet{root: root, ts: p.ts}
}

// Find returns the first layer matching t, walking inward.
func (p *Packet) Find(t Type) (PDU, bool) {
	if p.root == nil {
		return nil, false
	}
	return FindType(p.root, t)
}

// Serialize renders the whole chain.
func (p *Packet) Serialize() ([]byte, error) {
	if p.root == nil {
		return nil, nil
	}
	return Serialize(p.root)
}
