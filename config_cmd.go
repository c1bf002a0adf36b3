package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Long: `Display the configuration after defaults, the config file, environment
variables, and flags have been applied. The password is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if cc.Flags.JSON {
				return printJSON(cc.Out, effectiveConfig(cc.Cfg))
			}

			return config.RenderEffective(cc.Cfg, cc.Out)
		},
	}
}

type effectiveConfigJSON struct {
	ConfigPath      string `json:"config_path"`
	APIURL          string `json:"api_url"`
	EthAddress      string `json:"eth_address"`
	PasswordSet     bool   `json:"password_set"`
	ClientToolName  string `json:"client_tool_name"`
	StateDir        string `json:"state_dir"`
	PollInterval    string `json:"poll_interval"`
	MaxPollInterval string `json:"max_poll_interval"`
	QuickTimeout    string `json:"quick_timeout"`
	FullTimeout     string `json:"full_timeout"`
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	ConnectTimeout  string `json:"connect_timeout"`
	DataTimeout     string `json:"data_timeout"`
}

func effectiveConfig(r *config.Resolved) effectiveConfigJSON {
	return effectiveConfigJSON{
		ConfigPath:      r.ConfigPath,
		APIURL:          r.APIURL,
		EthAddress:      r.EthAddress,
		PasswordSet:     r.Password != "",
		ClientToolName:  r.ClientToolName,
		StateDir:        r.StateDir,
		PollInterval:    r.PollInterval.String(),
		MaxPollInterval: r.MaxPollInterval.String(),
		QuickTimeout:    r.QuickTimeout.String(),
		FullTimeout:     r.FullTimeout.String(),
		LogLevel:        r.LogLevel,
		LogFormat:       r.LogFormat,
		ConnectTimeout:  r.ConnectTimeout.String(),
		DataTimeout:     r.DataTimeout.String(),
	}
}
