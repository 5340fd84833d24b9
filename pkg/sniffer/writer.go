package sniffer

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/pdu"
)

// Writer appends packets to a pcap capture file. The link type is
// fixed when the file is opened.
type Writer struct {
	f        *os.File
	w        *pcapgo.Writer
	linkType layers.LinkType
	snapLen  uint32
}

// NewWriter creates path and writes the pcap file header.
func NewWriter(path string, linkType layers.LinkType) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	const snapLen = 65535
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, linkType); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Writer{f: f, w: w, linkType: linkType, snapLen: snapLen}, nil
}

// WritePacket serializes p and appends it with its own timestamp.
func (w *Writer) WritePacket(p *pdu.Packet) error {
	data, err := p.Serialize()
	if err != nil {
		return err
	}
	return w.WriteBytes(data, p.Timestamp())
}

// WriteBytes appends raw frame bytes with the given timestamp.
func (w *Writer) WriteBytes(data []byte, ts time.Time) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.w.WritePacket(ci, data); err != nil {
		return err
	}
	metrics.PacketsWrittenTotal.Inc()
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error { return w.f.Close() }
