package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/strix/internal/config"
	"firestige.xyz/strix/internal/log"
	"firestige.xyz/strix/pkg/export"
	"firestige.xyz/strix/pkg/pdu"
	"firestige.xyz/strix/pkg/sniffer"
)

var (
	sniffInterface string
	sniffFilter    string
	sniffCount     int
	sniffOutput    string
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Capture and dissect packets from an interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if sniffInterface != "" {
			cfg.Capture.Interface = sniffInterface
		}
		if sniffFilter != "" {
			cfg.Capture.Filter = sniffFilter
		}
		if sniffOutput != "" {
			cfg.Output.File = sniffOutput
		}
		if err := log.Init(cfg.Log); err != nil {
			return err
		}
		if cfg.Metrics.Enabled {
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(cfg.Metrics.Listen, nil); err != nil {
					logrus.WithError(err).Warn("metrics endpoint failed")
				}
			}()
		}
		return runSniff(cfg)
	},
}

func init() {
	sniffCmd.Flags().StringVarP(&sniffInterface, "interface", "i", "", "interface to capture on")
	sniffCmd.Flags().StringVarP(&sniffFilter, "filter", "f", "", "BPF filter text")
	sniffCmd.Flags().IntVarP(&sniffCount, "count", "n", 0, "stop after this many packets (0 = unlimited)")
	sniffCmd.Flags().StringVarP(&sniffOutput, "write", "w", "", "write captured packets to a pcap file")
}

func runSniff(cfg *config.Config) error {
	source, err := buildSource(cfg)
	if err != nil {
		return err
	}
	s := sniffer.New(source, cfg.Capture.Interface)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The pcap writer opens lazily on the first packet: its link type
	// is only known once the source is started by the sniff loop.
	var writer *sniffer.Writer
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	var reporter *export.KafkaReporter
	if len(cfg.Kafka.Brokers) > 0 {
		reporter, err = export.NewKafkaReporter(export.KafkaConfig{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			BatchSize: cfg.Kafka.BatchSize,
		})
		if err != nil {
			return err
		}
		defer reporter.Close()
	}

	seen := 0
	return s.Sniff(ctx, func(p *pdu.Packet) bool {
		fmt.Println(summaryLine(p))
		if cfg.Output.File != "" && writer == nil {
			var werr error
			writer, werr = sniffer.NewWriter(cfg.Output.File, source.LinkType())
			if werr != nil {
				logrus.WithError(werr).Error("open pcap writer failed")
				cfg.Output.File = ""
			}
		}
		if writer != nil {
			if err := writer.WritePacket(p); err != nil {
				logrus.WithError(err).Warn("pcap write failed")
			}
		}
		if reporter != nil {
			if err := reporter.Report(ctx, p); err != nil {
				logrus.WithError(err).Debug("kafka report failed")
			}
		}
		seen++
		return sniffCount == 0 || seen < sniffCount
	})
}

func buildSource(cfg *config.Config) (sniffer.Source, error) {
	if cfg.Capture.File != "" {
		return sniffer.NewFileSource(cfg.Capture.File)
	}
	return sniffer.NewSource(cfg.Capture.CaptureType, sniffer.LiveConfig{
		Interface:   cfg.Capture.Interface,
		SnapLen:     cfg.Capture.SnapLen,
		Promiscuous: cfg.Capture.Promiscuous,
		TimeoutMs:   cfg.Capture.TimeoutMs,
		Filter:      cfg.Capture.Filter,
	})
}

// summaryLine renders one packet as a single line: timestamp, layer
// chain and addressing.
func summaryLine(p *pdu.Packet) string {
	doc := export.Summarize(p)
	line := fmt.Sprintf("%s %s len=%d",
		doc.Timestamp.Format("15:04:05.000000"),
		strings.Join(doc.Layers, "/"),
		doc.Length)
	if doc.SrcIP != "" {
		if doc.Protocol != "" {
			line += fmt.Sprintf(" %s:%d > %s:%d", doc.SrcIP, doc.SrcPort, doc.DstIP, doc.DstPort)
		} else {
			line += fmt.Sprintf(" %s > %s", doc.SrcIP, doc.DstIP)
		}
	}
	return line
}
