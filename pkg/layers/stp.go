package layers

import (
	"fmt"

	"firestige.xyz/strix/internal/stream"
	"firestige.xyz/strix/pkg/pdu"
)

// BPDU types.
const (
	STPTypeConfig uint8 = 0x00
	STPTypeTCN    uint8 = 0x80
)

const (
	stpConfigSize = 35
	stpTCNSize    = 4
)

// STPBridgeID is the packed bridge identifier: a 4-bit priority, a
// 12-bit system ID extension and the bridge MAC.
type STPBridgeID struct {
	Priority  uint8  // 4 bits, in 4096 steps on the wire
	Extension uint16 // 12 bits
	Addr      pdu.HWAddress
}

func (id STPBridgeID) write(out *stream.Output) error {
	if err := out.WriteU16(uint16(id.Priority&0x0F)<<12 | id.Extension&0x0FFF); err != nil {
		return err
	}
	return out.WriteBytes(id.Addr[:])
}

func readBridgeID(in *stream.Input) (STPBridgeID, error) {
	var id STPBridgeID
	w, err := in.ReadU16()
	if err != nil {
		return id, err
	}
	id.Priority = uint8(w >> 12)
	id.Extension = w & 0x0FFF
	b, err := in.ReadBytes(6)
	if err != nil {
		return id, err
	}
	copy(id.Addr[:], b)
	return id, nil
}

// STP is a spanning-tree BPDU. Configuration BPDUs carry the full
// 35-byte body; topology-change notifications are the 4-byte header
// alone.
type STP struct {
	pdu.Base
	ProtoID      uint16
	ProtoVersion uint8
	BPDUType     uint8
	Flags        uint8
	RootID       STPBridgeID
	RootPathCost uint32
	BridgeID     STPBridgeID
	PortID       uint16
	MsgAge       uint16
	MaxAge       uint16
	HelloTime    uint16
	FwdDelay     uint16
}

// NewSTP builds a configuration BPDU.
func NewSTP() *STP { return &STP{BPDUType: STPTypeConfig} }

// ParseSTP dissects a BPDU.
func ParseSTP(data []byte) (*STP, error) {
	if len(data) < stpTCNSize {
		return nil, fmt.Errorf("%w: stp bpdu", pdu.ErrMalformed)
	}
	in := stream.NewInput(data)
	s := &STP{}
	s.ProtoID, _ = in.ReadU16()
	s.ProtoVersion, _ = in.ReadU8()
	s.BPDUType, _ = in.ReadU8()
	if s.BPDUType == STPTypeTCN {
		return s, nil
	}
	if len(data) < stpConfigSize {
		return nil, fmt.Errorf("%w: stp configuration bpdu", pdu.ErrMalformed)
	}
	s.Flags, _ = in.ReadU8()
	var err error
	if s.RootID, err = readBridgeID(in); err != nil {
		return nil, fmt.Errorf("%w: stp root id", pdu.ErrMalformed)
	}
	s.RootPathCost, _ = in.ReadU32()
	if s.BridgeID, err = readBridgeID(in); err != nil {
		return nil, fmt.Errorf("%w: stp bridge id", pdu.ErrMalformed)
	}
	s.PortID, _ = in.ReadU16()
	s.MsgAge, _ = in.ReadU16()
	s.MaxAge, _ = in.ReadU16()
	s.HelloTime, _ = in.ReadU16()
	s.FwdDelay, _ = in.ReadU16()
	return s, nil
}

func (s *STP) Type() pdu.Type { return pdu.TypeSTP }

func (s *STP) HeaderSize() int {
	if s.BPDUType == STPTypeTCN {
		return stpTCNSize
	}
	return stpConfigSize
}

func (s *STP) Clone() pdu.PDU {
	c := *s
	c.Base = pdu.Base{}
	pdu.Adopt(&c, s.CloneChild())
	return &c
}

func (s *STP) WriteHeader(buf []byte, total int) error {
	out := stream.NewOutput(buf[:s.HeaderSize()])
	out.WriteU16(s.ProtoID)
	out.WriteU8(s.ProtoVersion)
	if err := out.WriteU8(s.BPDUType); err != nil {
		return err
	}
	if s.BPDUType == STPTypeTCN {
		return nil
	}
	out.WriteU8(s.Flags)
	if err := s.RootID.write(out); err != nil {
		return err
	}
	out.WriteU32(s.RootPathCost)
	if err := s.BridgeID.write(out); err != nil {
		return err
	}
	out.WriteU16(s.PortID)
	out.WriteU16(s.MsgAge)
	out.WriteU16(s.MaxAge)
	out.WriteU16(s.HelloTime)
	return out.WriteU16(s.FwdDelay)
}
