package sniffer

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/strix/pkg/pdu"
)

// NewSource builds a live Source of the requested capture type.
// "pcap" (the default) works everywhere; "afpacket" needs Linux.
func NewSource(captureType string, cfg LiveConfig) (Source, error) {
	switch captureType {
	case "", "pcap":
		return NewLiveSource(cfg)
	case "afpacket":
		return newAFPacketFromLive(cfg)
	}
	return nil, fmt.Errorf("%w: capture type %q", pdu.ErrInvalidArgument, captureType)
}

// NewSourceFromOptions builds a Source from a loosely-typed options
// map, as task configurations deliver them.
func NewSourceFromOptions(captureType string, options map[string]any) (Source, error) {
	var cfg LiveConfig
	if err := mapstructure.Decode(options, &cfg); err != nil {
		return nil, fmt.Errorf("%w: capture options: %v", pdu.ErrInvalidArgument, err)
	}
	return NewSource(captureType, cfg)
}
