// Package logger initialises zerolog loggers from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config configures a logger.
type Config struct {
	// Level is a zerolog level name: trace, debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is "json" (default) or "console".
	Format string `json:"format" yaml:"format"`

	// Output is "stdout", "stderr" (default) or "file".
	Output string `json:"output" yaml:"output"`

	// FilePath is used when Output is "file".
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`

	// TimeFormat is "rfc3339" (default), "unix" or "iso8601".
	TimeFormat string `json:"time_format,omitempty" yaml:"time_format,omitempty"`
}

// New builds a logger from cfg. The returned close function releases the log
// file, if any, and is never nil.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	levelName := strings.ToLower(cfg.Level)
	if levelName == "" {
		levelName = "info"
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}

	switch strings.ToLower(cfg.TimeFormat) {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "iso8601":
		zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	var output io.Writer
	closeFn := noop
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "", "stderr":
		output = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return zerolog.Nop(), noop, fmt.Errorf("log output is file but no file path is set")
		}
		if dir := filepath.Dir(cfg.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return zerolog.Nop(), noop, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("failed to open log file '%s': %w", cfg.FilePath, err)
		}
		output = file
		closeFn = file.Close
	default:
		return zerolog.Nop(), noop, fmt.Errorf("unsupported log output '%s'", cfg.Output)
	}

	if strings.ToLower(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return l, closeFn, nil
}

// Init builds a logger from cfg and installs it as the global zerolog logger.
func Init(cfg Config) (func() error, error) {
	l, closeFn, err := New(cfg)
	if err != nil {
		return closeFn, err
	}
	log.Logger = l

	l.Debug().
		Str("level", cfg.Level).
		Str("format", cfg.Format).
		Str("output", cfg.Output).
		Msg("logger initialized")
	return closeFn, nil
}
