package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session for later commands",
		Long: `Log in with the configured address and password and save the issued
token pair. Later commands reuse the saved session and refresh it as needed.

The password is read from the config file or MYTHX_PASSWORD and is never saved
by this command.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	client, err := newClient(cc, clientOptions{fresh: true})
	if err != nil {
		return err
	}

	if err := client.Login(cmd.Context()); err != nil {
		return err
	}

	cc.Logger.Info("session saved", slog.String("path", cc.Cfg.TokenPath()))
	cc.Statusf("Logged in as %s.\n", cc.Cfg.EthAddress)

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	path := cc.Cfg.TokenPath()

	removed, err := tokenfile.Remove(path)
	if err != nil {
		return err
	}

	if !removed {
		cc.Statusf("No saved session for %s.\n", orDash(cc.Cfg.EthAddress))
		return nil
	}

	cc.Logger.Info("session removed", slog.String("path", path))
	cc.Statusf("Logged out %s.\n", cc.Cfg.EthAddress)

	return nil
}

// requireAddress fails early with a hint when no account is configured.
func requireAddress(cc *CLIContext) error {
	if cc.Cfg.EthAddress == "" {
		return fmt.Errorf("no account configured: set eth_address in %s, MYTHX_ETH_ADDRESS, or --address", cc.Cfg.ConfigPath)
	}

	return nil
}
