package sniffer

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/pdu"

	// Dissection goes through the dispatch tables; pull in the
	// concrete dissectors' registrations.
	_ "firestige.xyz/strix/pkg/layers"
)

// Handler consumes one dissected packet. Returning false stops the
// sniff loop.
type Handler func(*pdu.Packet) bool

// Sniffer runs a capture loop over a Source, dissecting each frame
// through the link-type dispatch table. The loop blocks the calling
// goroutine; Stop (or context cancellation) interrupts the
// outstanding read promptly by closing the source.
type Sniffer struct {
	source Source
	label  string

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a sniffer over source. label names the source in logs
// and metrics (normally the interface or file name).
func New(source Source, label string) *Sniffer {
	return &Sniffer{source: source, label: label, stopped: make(chan struct{})}
}

// Sniff starts the source and delivers dissected packets to handler
// until the source drains, the handler returns false, the context is
// canceled, or Stop is called.
func (s *Sniffer) Sniff(ctx context.Context, handler Handler) error {
	if err := s.source.Start(); err != nil {
		return err
	}
	defer s.source.Stop()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	dlt := int(s.source.LinkType())
	for {
		select {
		case <-s.stopped:
			return nil
		default:
		}
		data, ci, err := s.source.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			select {
			case <-s.stopped:
				return nil
			default:
			}
			logrus.WithError(err).WithField("source", s.label).Warn("read packet failed")
			return err
		}
		metrics.CapturePacketsTotal.WithLabelValues(s.label).Inc()

		root, err := pdu.FromLinkType(dlt, data)
		if err != nil {
			metrics.DecodeFallbacksTotal.Inc()
			root = pdu.NewRaw(data)
		}
		if !handler(pdu.NewPacket(root, ci.Timestamp)) {
			return nil
		}
	}
}

// Stop interrupts a running Sniff. Safe to call from any goroutine
// and more than once.
func (s *Sniffer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.source.Stop()
	})
}
