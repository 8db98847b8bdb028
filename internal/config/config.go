package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	replayv1 "github.com/cartridge/framereplay/pkg/proto/replay/v1"
)

// Config holds all replay server configuration
type Config struct {
	// Server settings
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes"`

	// Buffer defaults, used when a CreateBuffer request leaves them unset
	DefaultCapacity  int `mapstructure:"default_capacity"`
	DefaultStackSize int `mapstructure:"default_stack_size"`

	// Sampling
	Seed           int64 `mapstructure:"seed"` // 0 seeds from the clock
	WeightByLength bool  `mapstructure:"weight_by_length"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Port:             8080,
		ShutdownTimeout:  30 * time.Second,
		MaxMessageBytes:  replayv1.DefaultMaxMessageBytes,
		DefaultCapacity:  100000,
		DefaultStackSize: 1,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	if c.DefaultCapacity <= 0 {
		return fmt.Errorf("default_capacity must be positive")
	}
	if c.DefaultStackSize <= 0 {
		return fmt.Errorf("default_stack_size must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q is invalid: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger described by the config. A nil
// writer logs to stderr.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "replay").Logger()
}
