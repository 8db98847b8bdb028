package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"port":          func(c *Config) { c.Port = 0 },
		"message bytes": func(c *Config) { c.MaxMessageBytes = 0 },
		"capacity":      func(c *Config) { c.DefaultCapacity = -1 },
		"stack size":    func(c *Config) { c.DefaultStackSize = 0 },
		"shutdown":      func(c *Config) { c.ShutdownTimeout = 0 },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
		"log format":    func(c *Config) { c.LogFormat = "xml" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"service":"replay"`)
}
