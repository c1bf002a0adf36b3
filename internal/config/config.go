// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for mythx-go. Values are layered
// defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the top-level structure parsed from a TOML file. All keys are
// flat; the embedded section structs only group them in code.
type Config struct {
	ServiceConfig
	PollingConfig
	LoggingConfig
	NetworkConfig
}

// ServiceConfig identifies the API endpoint and the account used against it.
type ServiceConfig struct {
	APIURL         string `toml:"api_url"`
	EthAddress     string `toml:"eth_address"`
	Password       string `toml:"password"`
	ClientToolName string `toml:"client_tool_name"`
	StateDir       string `toml:"state_dir"`
}

// PollingConfig controls how long and how often pending analyses are polled.
type PollingConfig struct {
	PollInterval    string `toml:"poll_interval"`
	MaxPollInterval string `toml:"max_poll_interval"`
	QuickTimeout    string `toml:"quick_timeout"`
	FullTimeout     string `toml:"full_timeout"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from an explicit empty value.
type CLIOverrides struct {
	ConfigPath string  // --config (empty = env or default)
	APIURL     *string // --api-url
	Address    *string // --address
}

// Resolved is the effective configuration after every layer has been
// applied, with durations parsed.
type Resolved struct {
	ConfigPath string // file that was read, or would have been

	APIURL         string
	EthAddress     string
	Password       string
	ClientToolName string
	StateDir       string

	PollInterval    time.Duration
	MaxPollInterval time.Duration
	QuickTimeout    time.Duration
	FullTimeout     time.Duration

	LogLevel  string
	LogFormat string

	ConnectTimeout time.Duration
	DataTimeout    time.Duration
	UserAgent      string
}
