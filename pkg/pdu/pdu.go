package pdu

// PDU is one protocol layer in a packet. A PDU exclusively owns at most
// one child (the next inner layer) and keeps a non-owning back
// reference to its parent, valid while the chain is intact.
//
// Implementations embed Base for the link plumbing and provide the
// layer-specific sizing and header encoding.
type PDU interface {
	// Type returns the layer's tag.
	Type() Type

	// HeaderSize returns the bytes this layer contributes before its
	// child. It reflects the current field values (options included).
	HeaderSize() int

	// TrailerSize returns the bytes appended after the child.
	TrailerSize() int

	// Child returns the inner layer, or nil.
	Child() PDU

	// SetChild stores the child link. Use Adopt or Stack to keep the
	// parent back reference consistent.
	SetChild(PDU)

	// Parent returns the enclosing layer, or nil.
	Parent() PDU

	// SetParent stores the non-owning back reference.
	SetParent(PDU)

	// Clone returns a deep copy of this layer and its whole subtree.
	// The copy shares no mutable state with the original.
	Clone() PDU

	// WriteHeader renders this layer into buf. buf spans the layer's
	// entire serialized subtree: the header goes at the front, the
	// trailer (if any) at the back, and the child bytes in between
	// are already rendered, so derived fields (checksums, lengths,
	// next-protocol values) can be computed over them.
	WriteHeader(buf []byte, total int) error

	// MatchesResponse reports whether data looks like a response to
	// this layer (used when polling for replies after a send).
	MatchesResponse(data []byte) bool
}

// Base carries the child and parent links shared by every layer.
// The zero value is ready to use.
type Base struct {
	child  PDU
	parent PDU
}

func (b *Base) Child() PDU       { return b.child }
func (b *Base) SetChild(c PDU)   { b.child = c }
func (b *Base) Parent() PDU      { return b.parent }
func (b *Base) SetParent(p PDU)  { b.parent = p }
func (b *Base) TrailerSize() int { return 0 }

// MatchesResponse is the default: layers without a request/response
// notion never match.
func (b *Base) MatchesResponse([]byte) bool { return false }

// CloneChild deep-copies the child subtree, or returns nil.
func (b *Base) CloneChild() PDU {
	if b.child == nil {
		return nil
	}
	return b.child.Clone()
}

// Adopt links child under parent and fixes the back reference.
// A nil child clears the link.
func Adopt(parent, child PDU) {
	parent.SetChild(child)
	if child != nil {
		child.SetParent(parent)
	}
}

// Tail returns the innermost layer of the chain rooted at p.
func Tail(p PDU) PDU {
	for p.Child() != nil {
		p = p.Child()
	}
	return p
}

// Stack composes layers outermost-first: each one becomes the child of
// the previous chain's tail. It returns the root. Next-protocol fields
// resolve from the registry at serialization time, so a stacked chain
// needs no explicit type wiring.
func Stack(pdus ...PDU) PDU {
	if len(pdus) == 0 {
		return nil
	}
	root := pdus[0]
	for _, p := range pdus[1:] {
		Adopt(Tail(root), p)
	}
	return root
}

// Size returns the serialized length of the subtree rooted at p.
func Size(p PDU) int {
	n := 0
	for cur := p; cur != nil; cur = cur.Child() {
		n += cur.HeaderSize() + cur.TrailerSize()
	}
	return n
}

// Serialize renders the subtree rooted at p into a fresh buffer.
// Children are rendered before their parents so that a layer's
// WriteHeader can observe the payload bytes it covers.
func Serialize(p PDU) ([]byte, error) {
	buf := make([]byte, Size(p))
	if err := writeTree(p, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeTree(p PDU, buf []byte) error {
	h := p.HeaderSize()
	t := p.TrailerSize()
	if h+t > len(buf) {
		return ErrSerialize
	}
	if c := p.Child(); c != nil {
		if err := writeTree(c, buf[h:len(buf)-t]); err != nil {
			return err
		}
	}
	return p.WriteHeader(buf, len(buf))
}

// FindType returns the first layer of the chain rooted at p whose tag
// matches t (supertype matching included).
func FindType(p PDU, t Type) (PDU, bool) {
	for cur := p; cur != nil; cur = cur.Child() {
		if MatchesFlag(cur.Type(), t) {
			return cur, true
		}
	}
	return nil, false
}

// RFindType walks outward from p through the parent links and returns
// the first enclosing layer matching t.
func RFindType(p PDU, t Type) (PDU, bool) {
	for cur := p; cur != nil; cur = cur.Parent() {
		if MatchesFlag(cur.Type(), t) {
			return cur, true
		}
	}
	return nil, false
}

// Find returns the first layer of concrete type T in the chain rooted
// at p.
func Find[T PDU](p PDU) (T, bool) {
	for cur := p; cur != nil; cur = cur.Child() {
		if v, ok := cur.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// RFind walks outward from p and returns the first enclosing layer of
// concrete type T.
func RFind[T PDU](p PDU) (T, bool) {
	for cur := p; cur != nil; cur = cur.Parent() {
		if v, ok := cur.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
