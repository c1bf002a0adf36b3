package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads, parses, and validates a TOML config file. Unknown keys are
// fatal and reported with "did you mean?" suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: validation failed: %w", path, err)
	}

	if cfg.Password != "" {
		warnReadablePassword(path, logger)
	}

	logger.Debug("config loaded", slog.String("path", path))

	return cfg, nil
}

// LoadOrDefault reads path if it exists, otherwise returns the defaults.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no config file, using defaults", slog.String("path", path))
		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// warnReadablePassword logs when a file holding a password is readable by
// group or others.
func warnReadablePassword(path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	if info.Mode().Perm()&0o077 != 0 {
		logger.Warn("config file contains a password and is readable by other users",
			slog.String("path", path),
			slog.String("mode", info.Mode().Perm().String()),
		)
	}
}

// Resolve loads the config file and applies environment and CLI overrides:
// defaults -> file -> env -> CLI. The result is validated and its durations
// parsed.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Resolved, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, err
	}

	if env.APIURL != "" {
		cfg.APIURL = env.APIURL
	}

	if env.Address != "" {
		cfg.EthAddress = env.Address
	}

	if env.Password != "" {
		cfg.Password = env.Password
	}

	if cli.APIURL != nil {
		cfg.APIURL = *cli.APIURL
	}

	if cli.Address != nil {
		cfg.EthAddress = *cli.Address
	}

	// Overrides may have introduced bad values the file check never saw.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = DefaultDataDir()
	}

	r := &Resolved{
		ConfigPath:     cfgPath,
		APIURL:         cfg.APIURL,
		EthAddress:     cfg.EthAddress,
		Password:       cfg.Password,
		ClientToolName: cfg.ClientToolName,
		StateDir:       expandTilde(stateDir),
		LogLevel:       cfg.LogLevel,
		LogFormat:      cfg.LogFormat,
		UserAgent:      cfg.UserAgent,
	}

	// Validate has already checked every duration, so parse errors are
	// impossible here.
	r.PollInterval = mustDuration(cfg.PollInterval)
	r.MaxPollInterval = mustDuration(cfg.MaxPollInterval)
	r.QuickTimeout = mustDuration(cfg.QuickTimeout)
	r.FullTimeout = mustDuration(cfg.FullTimeout)
	r.ConnectTimeout = mustDuration(cfg.ConnectTimeout)
	r.DataTimeout = mustDuration(cfg.DataTimeout)

	return r, nil
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: unvalidated duration %q: %v", s, err))
	}

	return d
}
