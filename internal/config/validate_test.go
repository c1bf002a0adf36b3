package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative api url", func(c *Config) { c.APIURL = "/v1" }, "api_url: scheme"},
		{"api url without host", func(c *Config) { c.APIURL = "https://" }, "api_url: host"},
		{"empty tool name", func(c *Config) { c.ClientToolName = "" }, "client_tool_name"},
		{"bad duration", func(c *Config) { c.PollInterval = "fast" }, "poll_interval: invalid duration"},
		{"interval too small", func(c *Config) { c.PollInterval = "1ms" }, "poll_interval: must be >="},
		{"quick timeout too small", func(c *Config) { c.QuickTimeout = "10s" }, "quick_timeout"},
		{"max below base", func(c *Config) { c.PollInterval = "10s"; c.MaxPollInterval = "5s" }, "max_poll_interval: must be >= poll_interval"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"connect timeout", func(c *Config) { c.ConnectTimeout = "10ms" }, "connect_timeout"},
		{"data timeout", func(c *Config) { c.DataTimeout = "1s" }, "data_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "eth_address", closestMatch("eth_adress", knownKeys))
	assert.Equal(t, "log_level", closestMatch("loglevel", knownKeys))
	assert.Empty(t, closestMatch("completely_unrelated", knownKeys))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("same", "same"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
