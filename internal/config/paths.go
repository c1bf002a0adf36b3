package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// appName is the directory name used on every platform.
const appName = "mythx-go"

const (
	configFileName = "config.toml"
	jobDBFileName  = "jobs.db"
	sessionsDir    = "sessions"
)

// DefaultConfigDir returns the platform config directory: XDG_CONFIG_HOME on
// Linux, ~/Library/Application Support on macOS, ~/.config elsewhere.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform directory for state (session files and
// the job database). On macOS config and data share one directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}

	return filepath.Join(fallback, appName)
}

// DefaultConfigPath returns the config file path used when neither
// MYTHX_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// TokenPath returns the session file for the resolved address and endpoint.
// Distinct endpoints get distinct files so a staging login never shadows a
// production one.
func (r *Resolved) TokenPath() string {
	return filepath.Join(r.StateDir, sessionsDir, sessionFileName(r.EthAddress, r.APIURL))
}

// JobDBPath returns the path of the local job history database.
func (r *Resolved) JobDBPath() string {
	return filepath.Join(r.StateDir, jobDBFileName)
}

// sessionFileName builds a filesystem-safe name from address and endpoint
// host, e.g. "0xabc@api.mythx.io.json".
func sessionFileName(address, apiURL string) string {
	host := apiURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}

	host = strings.TrimRight(host, "/")

	return sanitize(strings.ToLower(address)) + "@" + sanitize(host) + ".json"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
