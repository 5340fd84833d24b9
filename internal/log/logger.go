// Package log configures the global logrus logger from the CLI
// configuration: level, pattern-style formatter, and stdout plus
// optional rotating-file outputs.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/strix/internal/config"
)

// Defaults when the config leaves the formatter section empty.
const (
	defaultPattern    = "%time [%level] %msg %field"
	defaultTimeLayout = "2006-01-02 15:04:05.000"
)

// Init applies cfg to the logrus standard logger.
func Init(cfg config.LogConfig) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	timeLayout := cfg.Time
	if timeLayout == "" {
		timeLayout = defaultTimeLayout
	}
	logrus.SetFormatter(&patternFormatter{pattern: pattern, time: timeLayout})
	logrus.SetReportCaller(strings.Contains(pattern, "%caller"))

	writers := []io.Writer{os.Stdout}
	if cfg.File.Filename != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSize,    // megabytes
			MaxBackups: cfg.File.MaxBackups, // number of backups
			MaxAge:     cfg.File.MaxAge,     // days
			Compress:   cfg.File.Compress,
		})
	}
	logrus.SetOutput(io.MultiWriter(writers...))
	return nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.ToLower(s))
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
