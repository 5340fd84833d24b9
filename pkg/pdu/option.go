package pdu

// Option is one TLV entry: a small integer kind and an opaque payload.
// Value semantics belong to the owning dissector, not the container.
type Option struct {
	Kind uint16
	Data []byte
}

// Clone returns a copy that shares no storage with o.
func (o Option) Clone() Option {
	d := make([]byte, len(o.Data))
	copy(d, o.Data)
	return Option{Kind: o.Kind, Data: d}
}

// Options is an ordered TLV list. Insertion order is preserved on
// serialization and duplicates are permitted — several TCP and DHCP
// options legitimately repeat.
type Options []Option

// Add appends an option.
func (os *Options) Add(kind uint16, data []byte) {
	*os = append(*os, Option{Kind: kind, Data: data})
}

// Find returns the first option of the given kind.
func (os Options) Find(kind uint16) (Option, bool) {
	for _, o := range os {
		if o.Kind == kind {
			return o, true
		}
	}
	return Option{}, false
}

// RemoveFirst deletes the first option of the given kind and reports
// whether one was found.
func (os *Options) RemoveFirst(kind uint16) bool {
	for i, o := range *os {
		if o.Kind == kind {
			*os = append((*os)[:i], (*os)[i+1:]...)
			return true
		}
	}
	return false
}

// Clone deep-copies the list.
func (os Options) Clone() Options {
	if os == nil {
		return nil
	}
	out := make(Options, len(os))
	for i, o := range os {
		out[i] = o.Clone()
	}
	return out
}

// DataSize sums the payload lengths (no per-protocol framing).
func (os Options) DataSize() int {
	n := 0
	for _, o := range os {
		n += len(o.Data)
	}
	return n
}
