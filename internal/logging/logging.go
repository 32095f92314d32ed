package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the config.yaml "logging" block.
type Config struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxBytes    int    `yaml:"max_bytes"`
	BackupCount int    `yaml:"backup_count"`
	Console     bool   `yaml:"console"`
}

// New builds a zerolog.Logger per cfg. When cfg.File is set, output is
// rotated through lumberjack; when cfg.Console is also set (or File is
// empty), a human-readable console writer is layered in alongside it.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSizeMB(cfg.MaxBytes),
			MaxBackups: cfg.BackupCount,
		})
	}
	if cfg.Console || cfg.File == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var out io.Writer = zerolog.MultiLevelWriter(writers...)
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// maxSizeMB converts the config's byte-oriented max_bytes knob into
// lumberjack's MB-denominated MaxSize, rounding down to whole megabytes
// with a floor of 1, so a nonzero byte budget never collapses to a
// zero-size (meaning "unlimited") rotation.
func maxSizeMB(maxBytes int) int {
	if maxBytes <= 0 {
		return 100
	}
	mb := maxBytes / (1024 * 1024)
	if mb < 1 {
		return 1
	}
	return mb
}
