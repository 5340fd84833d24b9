// Package pdu defines the protocol-unit abstraction: the polymorphic
// layer object every dissector implements, the dispatch registry that
// maps next-protocol values to constructors, and the composition and
// serialization machinery that turns a chain of layers into wire bytes
// and back.
package pdu

import "errors"

// Sentinel errors. Dissector constructors wrap ErrMalformed with layer
// context; mutators report ErrInvalidArgument or ErrLogic at the call
// site; serialization failures bubble to the root Serialize.
var (
	// ErrMalformed reports input bytes shorter than a header requires
	// or field values that are inconsistent with each other.
	ErrMalformed = errors.New("strix: malformed packet")

	// ErrInvalidArgument reports an out-of-range value passed to a
	// field mutator.
	ErrInvalidArgument = errors.New("strix: invalid argument")

	// ErrLogic reports an operation incompatible with the current
	// state of the layer.
	ErrLogic = errors.New("strix: logic error")

	// ErrSerialize reports an output buffer too small or a derived
	// field that cannot be computed.
	ErrSerialize = errors.New("strix: serialization error")

	// ErrUnknownProtocol reports a dispatch registry miss. The parser
	// recovers locally by wrapping the remainder in a Raw PDU.
	ErrUnknownProtocol = errors.New("strix: unknown protocol")

	// ErrInvalidInterface surfaces capture or send failures from the
	// underlying packet source.
	ErrInvalidInterface = errors.New("strix: invalid interface")
)
