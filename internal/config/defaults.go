package config

// Layer-0 values used when neither the file, the environment, nor a flag sets
// a key.
const (
	defaultAPIURL          = "https://api.mythx.io"
	defaultClientToolName  = "mythx-go"
	defaultPollInterval    = "1s"
	defaultMaxPollInterval = "30s"
	defaultQuickTimeout    = "5m"
	defaultFullTimeout     = "5h"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultConnectTimeout  = "10s"
	defaultDataTimeout     = "60s"
)

// DefaultConfig returns a Config populated with all default values. It is the
// starting point for TOML decoding, so unset keys keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceConfig: ServiceConfig{
			APIURL:         defaultAPIURL,
			ClientToolName: defaultClientToolName,
		},
		PollingConfig: PollingConfig{
			PollInterval:    defaultPollInterval,
			MaxPollInterval: defaultMaxPollInterval,
			QuickTimeout:    defaultQuickTimeout,
			FullTimeout:     defaultFullTimeout,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		NetworkConfig: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
		},
	}
}
