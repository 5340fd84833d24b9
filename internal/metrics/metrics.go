// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts frames delivered by a capture source.
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_capture_packets_total",
			Help: "Total number of packets captured",
		},
		[]string{"interface"},
	)

	// DecodeFallbacksTotal counts frames whose dissection fell back to
	// a raw payload at the link layer.
	DecodeFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strix_decode_fallbacks_total",
			Help: "Total number of frames with a raw-fallback root layer",
		},
	)

	// ReassemblyActiveStreams tracks IPv4 fragment streams awaiting
	// completion.
	ReassemblyActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strix_reassembly_active_streams",
			Help: "Number of active IPv4 fragment streams",
		},
	)

	// PacketsWrittenTotal counts packets written to capture files.
	PacketsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strix_pcap_packets_written_total",
			Help: "Total number of packets written to pcap files",
		},
	)

	// ExportErrorsTotal counts reporter errors by reporter name.
	ExportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strix_export_errors_total",
			Help: "Total number of export errors",
		},
		[]string{"reporter"},
	)
)
