package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration to w in TOML form. The
// password is never printed, only whether one is set.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	ew.printf("api_url           = %q\n", r.APIURL)
	ew.printf("eth_address       = %q\n", r.EthAddress)
	ew.printf("password          = %q\n", redacted(r.Password))
	ew.printf("client_tool_name  = %q\n", r.ClientToolName)
	ew.printf("state_dir         = %q\n\n", r.StateDir)

	ew.printf("poll_interval     = %q\n", r.PollInterval)
	ew.printf("max_poll_interval = %q\n", r.MaxPollInterval)
	ew.printf("quick_timeout     = %q\n", r.QuickTimeout)
	ew.printf("full_timeout      = %q\n\n", r.FullTimeout)

	ew.printf("log_level         = %q\n", r.LogLevel)
	ew.printf("log_format        = %q\n\n", r.LogFormat)

	ew.printf("connect_timeout   = %q\n", r.ConnectTimeout)
	ew.printf("data_timeout      = %q\n", r.DataTimeout)

	if r.UserAgent != "" {
		ew.printf("user_agent        = %q\n", r.UserAgent)
	}

	return ew.err
}

func redacted(secret string) string {
	if secret == "" {
		return ""
	}

	return "(set)"
}

// errWriter captures the first write error so callers can chain printf
// calls without checking each one.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
