package pdu

// Raw holds bytes no registered dissector claimed: unknown payload
// types, truncated layers, or literal payload data supplied by the
// user when crafting.
type Raw struct {
	Base
	payload []byte
}

// NewRaw wraps data in a Raw PDU. The bytes are copied.
func NewRaw(data []byte) *Raw {
	p := make([]byte, len(data))
	copy(p, data)
	return &Raw{payload: p}
}

func (r *Raw) Type() Type      { return TypeRaw }
func (r *Raw) HeaderSize() int { return len(r.payload) }

// Payload returns the wrapped bytes.
func (r *Raw) Payload() []byte { return r.payload }

// SetPayload replaces the wrapped bytes.
func (r *Raw) SetPayload(data []byte) {
	r.payload = make([]byte, len(data))
	copy(r.payload, data)
}

func (r *Raw) Clone() PDU {
	c := NewRaw(r.payload)
	Adopt(c, r.CloneChild())
	return c
}

func (r *Raw) WriteHeader(buf []byte, total int) error {
	if len(buf) < len(r.payload) {
		return ErrSerialize
	}
	copy(buf, r.payload)
	return nil
}
