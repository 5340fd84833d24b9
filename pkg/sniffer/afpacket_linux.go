//go:build linux

package sniffer

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/strix/pkg/pdu"
)

// AFPacketConfig parameterizes an AF_PACKET capture.
type AFPacketConfig struct {
	Interface    string
	SnapLen      int
	BufferSizeMB int
	TimeoutMs    int
	FanoutID     uint16
	Filter       string // BPF filter text, compiled via libpcap
}

func newAFPacketFromLive(cfg LiveConfig) (Source, error) {
	return NewAFPacketSource(AFPacketConfig{
		Interface: cfg.Interface,
		SnapLen:   cfg.SnapLen,
		TimeoutMs: cfg.TimeoutMs,
		Filter:    cfg.Filter,
	})
}

// AFPacketSource captures through a TPACKET v3 ring buffer. Linux
// only.
type AFPacketSource struct {
	cfg    AFPacketConfig
	handle *afpacket.TPacket
}

// NewAFPacketSource creates an AF_PACKET source for cfg.
func NewAFPacketSource(cfg AFPacketConfig) (*AFPacketSource, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("%w: interface is required", pdu.ErrInvalidInterface)
	}
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = 65535
	}
	if cfg.BufferSizeMB <= 0 {
		cfg.BufferSizeMB = 8
	}
	return &AFPacketSource{cfg: cfg}, nil
}

func (s *AFPacketSource) Start() error {
	frameSize, blockSize, numBlocks, err := afpacketComputeSize(s.cfg.BufferSizeMB, s.cfg.SnapLen, 4096)
	if err != nil {
		return err
	}
	opts := []interface{}{
		afpacket.OptInterface(s.cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.TPacketVersion3,
	}
	if s.cfg.TimeoutMs > 0 {
		opts = append(opts, afpacket.OptPollTimeout(time.Duration(s.cfg.TimeoutMs)*time.Millisecond))
	}
	handle, err := afpacket.NewTPacket(opts...)
	if err != nil {
		return fmt.Errorf("%w: af_packet on %s: %v", pdu.ErrInvalidInterface, s.cfg.Interface, err)
	}
	if s.cfg.Filter != "" {
		ins, err := compileBPF(s.cfg.Filter, s.cfg.SnapLen)
		if err != nil {
			handle.Close()
			return err
		}
		if err := handle.SetBPF(ins); err != nil {
			handle.Close()
			return fmt.Errorf("%w: set bpf: %v", pdu.ErrInvalidInterface, err)
		}
	}
	if s.cfg.FanoutID != 0 {
		if err := handle.SetFanout(afpacket.FanoutHash, s.cfg.FanoutID); err != nil {
			handle.Close()
			return fmt.Errorf("%w: set fanout: %v", pdu.ErrInvalidInterface, err)
		}
	}
	s.handle = handle
	return nil
}

func (s *AFPacketSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if s.handle == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("%w: source not started", pdu.ErrInvalidInterface)
	}
	return s.handle.ReadPacketData()
}

func (s *AFPacketSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (s *AFPacketSource) Stop() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

// afpacketComputeSize derives ring geometry from the requested buffer
// size, keeping the block size a multiple of the page size.
func afpacketComputeSize(targetSizeMB, snaplen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if snaplen < pageSize {
		frameSize = pageSize
		for frameSize/2 >= snaplen && frameSize/2*128 >= pageSize {
			frameSize /= 2
		}
	} else {
		frameSize = (snaplen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = (targetSizeMB * 1024 * 1024) / blockSize
	if numBlocks == 0 {
		return 0, 0, 0, fmt.Errorf("%w: buffer size %dMB too small", pdu.ErrInvalidArgument, targetSizeMB)
	}
	return frameSize, blockSize, numBlocks, nil
}

// compileBPF turns tcpdump-style filter text into raw instructions for
// the AF_PACKET socket, using libpcap's compiler.
func compileBPF(filter string, snaplen int) ([]bpf.RawInstruction, error) {
	pcapIns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snaplen, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: bpf filter %q: %v", pdu.ErrInvalidArgument, filter, err)
	}
	ins := make([]bpf.RawInstruction, len(pcapIns))
	for i, p := range pcapIns {
		ins[i] = bpf.RawInstruction{Op: p.Code, Jt: p.Jt, Jf: p.Jf, K: p.K}
	}
	return ins, nil
}
