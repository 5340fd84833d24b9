// Package sniffer adapts libpcap-style capture sources to the PDU
// engine: live interfaces, capture files and AF_PACKET sockets feed a
// callback loop that dissects every frame through the link-type
// dispatch table.
package sniffer

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/strix/pkg/pdu"
)

// Source is a packet source. ReadPacket blocks until the next frame,
// end of file, or Stop.
type Source interface {
	Start() error
	ReadPacket() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Stop() error
}

// LiveConfig parameterizes a live capture.
type LiveConfig struct {
	Interface   string `mapstructure:"interface"`
	SnapLen     int    `mapstructure:"snap_len"`
	Promiscuous bool   `mapstructure:"promiscuous"`
	TimeoutMs   int    `mapstructure:"timeout_ms"`
	Filter      string `mapstructure:"filter"` // BPF filter text
}

// LiveSource captures from a network interface via libpcap.
type LiveSource struct {
	cfg    LiveConfig
	handle *pcap.Handle
}

// NewLiveSource creates a live source for cfg (zero values select the
// usual defaults).
func NewLiveSource(cfg LiveConfig) (*LiveSource, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("%w: interface is required", pdu.ErrInvalidInterface)
	}
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = 65535
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 100
	}
	return &LiveSource{cfg: cfg}, nil
}

func (s *LiveSource) Start() error {
	handle, err := pcap.OpenLive(s.cfg.Interface, int32(s.cfg.SnapLen), s.cfg.Promiscuous,
		time.Duration(s.cfg.TimeoutMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", pdu.ErrInvalidInterface, s.cfg.Interface, err)
	}
	if s.cfg.Filter != "" {
		if err := handle.SetBPFFilter(s.cfg.Filter); err != nil {
			handle.Close()
			return fmt.Errorf("%w: bpf filter %q: %v", pdu.ErrInvalidInterface, s.cfg.Filter, err)
		}
	}
	s.handle = handle
	return nil
}

func (s *LiveSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if s.handle == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("%w: source not started", pdu.ErrInvalidInterface)
	}
	return s.handle.ReadPacketData()
}

func (s *LiveSource) LinkType() layers.LinkType {
	if s.handle == nil {
		return layers.LinkTypeEthernet
	}
	return s.handle.LinkType()
}

func (s *LiveSource) Stop() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

// FileSource reads packets from a pcap capture file.
type FileSource struct {
	path   string
	handle *pcap.Handle
}

// NewFileSource creates a file source for path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file path is required", pdu.ErrInvalidInterface)
	}
	return &FileSource{path: path}, nil
}

func (fs *FileSource) Start() error {
	handle, err := pcap.OpenOffline(fs.path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file %s: %w", fs.path, err)
	}
	fs.handle = handle
	return nil
}

func (fs *FileSource) ReadPacket() ([]byte, gopacket.CaptureInfo, error) {
	if fs.handle == nil {
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("%w: source not started", pdu.ErrInvalidInterface)
	}
	data, ci, err := fs.handle.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return nil, gopacket.CaptureInfo{}, io.EOF
		}
		return nil, gopacket.CaptureInfo{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return data, ci, nil
}

func (fs *FileSource) LinkType() layers.LinkType {
	if fs.handle == nil {
		return layers.LinkTypeEthernet
	}
	return fs.handle.LinkType()
}

func (fs *FileSource) Stop() error {
	if fs.handle != nil {
		fs.handle.Close()
		fs.handle = nil
	}
	return nil
}
