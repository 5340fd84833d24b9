// Package config handles CLI configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Output  OutputConfig  `mapstructure:"output"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// CaptureConfig selects the capture source and its parameters.
type CaptureConfig struct {
	Interface   string `mapstructure:"interface"`
	File        string `mapstructure:"file"` // read from a pcap file instead of an interface
	SnapLen     int    `mapstructure:"snap_len"`
	Promiscuous bool   `mapstructure:"promiscuous"`
	TimeoutMs   int    `mapstructure:"timeout_ms"`
	Filter      string `mapstructure:"filter"`       // BPF filter text
	CaptureType string `mapstructure:"capture_type"` // pcap | afpacket
}

// OutputConfig controls the pcap writer.
type OutputConfig struct {
	File string `mapstructure:"file"`
}

// KafkaConfig controls the optional packet-summary exporter.
type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	BatchSize int      `mapstructure:"batch_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LogConfig controls the global logger. Pattern is a placeholder
// template (%time, %level, %field, %msg, %caller); Time is the layout
// for the %time placeholder.
type LogConfig struct {
	Level   string        `mapstructure:"level"`
	Pattern string        `mapstructure:"pattern"`
	Time    string        `mapstructure:"time"`
	File    LogFileConfig `mapstructure:"file"`
}

// LogFileConfig is the rotating file appender section.
type LogFileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads the configuration file (YAML) and applies defaults.
// An empty path skips the file; the defaults and STRIX_-prefixed
// environment overrides still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("capture.snap_len", 65535)
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.timeout_ms", 100)
	v.SetDefault("capture.capture_type", "pcap")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("metrics.listen", ":9465")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", "%time [%level] %msg %field")
	v.SetDefault("log.time", "2006-01-02 15:04:05.000")

	v.SetEnvPrefix("STRIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
