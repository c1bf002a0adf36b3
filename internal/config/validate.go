package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minPollInterval   = 100 * time.Millisecond
	minQuickTimeout   = 1 * time.Minute
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
)

// Validate checks all configuration values and returns every error found,
// joined, so a user can fix them all in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateService(&cfg.ServiceConfig)...)
	errs = append(errs, validatePolling(&cfg.PollingConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

func validateService(s *ServiceConfig) []error {
	var errs []error

	if err := validateAPIURL(s.APIURL); err != nil {
		errs = append(errs, err)
	}

	if s.ClientToolName == "" {
		errs = append(errs, errors.New("client_tool_name: must not be empty"))
	}

	return errs
}

func validateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("api_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url: scheme must be http or https, got %q", raw)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("api_url: host is required, got %q", raw)
	}

	return nil
}

func validatePolling(p *PollingConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("poll_interval", p.PollInterval, minPollInterval)...)
	errs = append(errs, validateDurationMin("max_poll_interval", p.MaxPollInterval, minPollInterval)...)
	errs = append(errs, validateDurationMin("quick_timeout", p.QuickTimeout, minQuickTimeout)...)
	errs = append(errs, validateDurationMin("full_timeout", p.FullTimeout, minQuickTimeout)...)

	if len(errs) > 0 {
		return errs
	}

	interval, _ := time.ParseDuration(p.PollInterval)
	maxInterval, _ := time.ParseDuration(p.MaxPollInterval)

	if maxInterval < interval {
		errs = append(errs, fmt.Errorf("max_poll_interval: must be >= poll_interval (%s), got %s",
			p.PollInterval, p.MaxPollInterval))
	}

	return errs
}

// validateDuration checks that a duration string parses and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, value)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}
