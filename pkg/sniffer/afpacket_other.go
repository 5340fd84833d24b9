//go:build !linux

package sniffer

import (
	"fmt"

	"firestige.xyz/strix/pkg/pdu"
)

func newAFPacketFromLive(LiveConfig) (Source, error) {
	return nil, fmt.Errorf("%w: af_packet capture requires linux", pdu.ErrInvalidInterface)
}
