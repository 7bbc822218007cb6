package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Log level: debug, info, warn, error
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Log format: json, text
	Format string `mapstructure:"format" validate:"required,oneof=json text"`

	// Output destination: stdout, stderr, file
	Output string `mapstructure:"output" validate:"required,oneof=stdout stderr file"`

	// File path (required if output is "file")
	FilePath string `mapstructure:"file_path"`
}

// NewLogger builds the process logger. The returned closer releases a log
// file and is a no-op for standard streams.
func (l LoggingConfig) NewLogger() (*slog.Logger, io.Closer, error) {
	var w io.WriteCloser = nopCloser{os.Stdout}
	switch l.Output {
	case "stderr":
		w = nopCloser{os.Stderr}
	case "file":
		f, err := os.OpenFile(l.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}
	return slog.New(l.Handler(w)), w, nil
}

// Handler returns a text or JSON handler writing to w at the configured level.
func (l LoggingConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
