// Package export publishes dissected-packet summaries to external
// sinks.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/sirupsen/logrus"

	"firestige.xyz/strix/internal/metrics"
	"firestige.xyz/strix/pkg/layers"
	"firestige.xyz/strix/pkg/pdu"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// KafkaConfig configures the reporter.
type KafkaConfig struct {
	Brokers      []string      // required
	Topic        string        // required
	BatchSize    int           // optional, default 100
	BatchTimeout time.Duration // optional, default 100ms
	MaxAttempts  int           // optional, default 3
}

// PacketSummary is the JSON document published per packet.
type PacketSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Layers    []string  `json:"layers"`
	Length    int       `json:"length"`
	SrcIP     string    `json:"src_ip,omitempty"`
	DstIP     string    `json:"dst_ip,omitempty"`
	SrcPort   uint16    `json:"src_port,omitempty"`
	DstPort   uint16    `json:"dst_port,omitempty"`
	Protocol  string    `json:"protocol,omitempty"`
}

// KafkaReporter publishes packet summaries to Kafka with batching,
// compression and bounded retries.
type KafkaReporter struct {
	writer *kafka.Writer

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// NewKafkaReporter validates cfg and builds the reporter.
func NewKafkaReporter(cfg KafkaConfig) (*KafkaReporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka reporter: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka reporter: topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &KafkaReporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			MaxAttempts:  cfg.MaxAttempts,
			Compression:  kafka.Compression(compress.Snappy),
			Balancer:     &kafka.Hash{},
		},
	}, nil
}

// Report publishes one packet's summary.
func (r *KafkaReporter) Report(ctx context.Context, p *pdu.Packet) error {
	doc := Summarize(p)
	value, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := r.writer.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		r.errorCount.Add(1)
		metrics.ExportErrorsTotal.WithLabelValues("kafka").Inc()
		logrus.WithError(err).Warn("kafka report failed")
		return err
	}
	r.reportedCount.Add(1)
	return nil
}

// Stats returns (reported, errored) counts.
func (r *KafkaReporter) Stats() (uint64, uint64) {
	return r.reportedCount.Load(), r.errorCount.Load()
}

// Close flushes pending batches.
func (r *KafkaReporter) Close() error { return r.writer.Close() }

// Summarize flattens a packet chain into its summary document.
func Summarize(p *pdu.Packet) PacketSummary {
	doc := PacketSummary{Timestamp: p.Timestamp()}
	if p.Root() == nil {
		return doc
	}
	doc.Length = pdu.Size(p.Root())
	for cur := p.Root(); cur != nil; cur = cur.Child() {
		doc.Layers = append(doc.Layers, cur.Type().String())
		switch l := cur.(type) {
		case *layers.IP:
			doc.SrcIP, doc.DstIP = l.SrcAddr.String(), l.DstAddr.String()
		case *layers.IPv6:
			doc.SrcIP, doc.DstIP = l.SrcAddr.String(), l.DstAddr.String()
		case *layers.TCP:
			doc.SrcPort, doc.DstPort, doc.Protocol = l.SrcPort, l.DstPort, "tcp"
		case *layers.UDP:
			doc.SrcPort, doc.DstPort, doc.Protocol = l.SrcPort, l.DstPort, "udp"
		}
	}
	return doc
}
