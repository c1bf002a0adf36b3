package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/config"
	"github.com/tonimelisma/mythx-go/internal/jobstore"
	"github.com/tonimelisma/mythx-go/internal/mythx"
	"github.com/tonimelisma/mythx-go/internal/tokenfile"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	APIURL     string
	Address    string
	JSON       bool
	Verbose    bool
	Debug      int // repeatable; also sets the poll trace level of analyze
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and carried in
// the command context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger

	// Out receives command output, Err receives status messages.
	Out io.Writer
	Err io.Writer
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. Commands
// only run after the pre-run, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("mythx-go: CLIContext missing from command context")
	}

	return cc
}

// Statusf prints a status message to Err unless --quiet is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !cc.Flags.Quiet {
		fmt.Fprintf(cc.Err, format, args...)
	}
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "mythx-go",
		Short:   "MythX smart-contract analysis client",
		Long:    "Submit smart contracts to the MythX analysis service and retrieve the reported issues.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.APIURL, "api-url", "", "MythX API base URL")
	pf.StringVar(&flags.Address, "address", "", "account Ethereum address")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "log lifecycle events")
	pf.CountVar(&flags.Debug, "debug", "log every request (repeat to dump poll records)")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "only log errors and suppress status output")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newAnalyzeCmd(),
		newStatusCmd(),
		newIssuesCmd(),
		newListCmd(),
		newResumeCmd(),
		newJobsCmd(),
		newVersionCmd(),
		newConfigCmd(),
	)

	return cmd
}

// loadCLIContext resolves configuration, builds the logger, and stores the
// CLIContext on cmd.
func loadCLIContext(cmd *cobra.Command, flags CLIFlags) error {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	if cmd.Flags().Changed("api-url") {
		cli.APIURL = &flags.APIURL
	}

	if cmd.Flags().Changed("address") {
		cli.Address = &flags.Address
	}

	bootstrap := buildLogger(nil, flags, cmd.ErrOrStderr())

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli, bootstrap)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: buildLogger(resolved, flags, cmd.ErrOrStderr()),
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(withCLIContext(ctx, cc))

	return nil
}

// buildLogger creates the logger. The config level is the baseline; the
// --verbose, --debug, and --quiet flags override it. Without a config
// (bootstrap) the baseline is Warn.
func buildLogger(cfg *config.Resolved, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	format := "auto"

	if cfg != nil {
		level = parseLevel(cfg.LogLevel)
		format = cfg.LogFormat
	}

	switch {
	case flags.Quiet:
		level = slog.LevelError
	case flags.Debug > 0:
		level = slog.LevelDebug
	case flags.Verbose:
		level = min(level, slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !isTerminal(w)) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newHTTPClient applies the configured connect and response-header timeouts.
// The overall request time is bounded by the command context instead of
// http.Client.Timeout, because issue reports can take long to download.
func newHTTPClient(cfg *config.Resolved) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.DataTimeout

	return &http.Client{Transport: transport}
}

// clientOptions controls newClient.
type clientOptions struct {
	// fresh skips the persisted session so that a new login is forced.
	fresh bool
}

// newClient builds a mythx.Client from the resolved config. A persisted
// session for the same address and endpoint seeds the client, and every
// new token pair is written back.
func newClient(cc *CLIContext, opts clientOptions) (*mythx.Client, error) {
	if err := requireAddress(cc); err != nil {
		return nil, err
	}

	cfg := cc.Cfg
	path := cfg.TokenPath()

	var seed mythx.TokenPair

	if !opts.fresh {
		seed = loadSession(cc, path)
	}

	return mythx.NewClient(
		mythx.Credentials{Address: cfg.EthAddress, Password: cfg.Password},
		mythx.Options{
			BaseURL:        cfg.APIURL,
			HTTPClient:     newHTTPClient(cfg),
			Logger:         cc.Logger,
			UserAgent:      userAgent(cc),
			ClientToolName: cfg.ClientToolName,
			Tokens:         seed,
			OnTokenChange:  sessionSaver(cc, path),
			Policy: mythx.PollPolicy{
				QuickTimeout: cfg.QuickTimeout,
				FullTimeout:  cfg.FullTimeout,
				Interval:     cfg.PollInterval,
				MaxInterval:  cfg.MaxPollInterval,
			},
		},
	)
}

// userAgent returns the configured User-Agent or the client's default.
func userAgent(cc *CLIContext) string {
	if cc.Cfg.UserAgent != "" {
		return cc.Cfg.UserAgent
	}

	return "mythx-go/" + version
}

// loadSession returns the persisted pair at path, or the zero pair if there
// is none or it is unusable.
func loadSession(cc *CLIContext, path string) mythx.TokenPair {
	s, err := tokenfile.Load(path, cc.Cfg.EthAddress, cc.Cfg.APIURL)
	if err != nil {
		cc.Logger.Warn("ignoring saved session",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return mythx.TokenPair{}
	}

	if s == nil {
		return mythx.TokenPair{}
	}

	cc.Logger.Debug("resuming saved session", slog.String("path", path))

	return mythx.TokenPairFromOAuth2(s.Token)
}

// sessionSaver persists every new pair. A failed write is logged and does not
// fail the command: the pair in memory is still valid.
func sessionSaver(cc *CLIContext, path string) func(mythx.TokenPair) {
	return func(pair mythx.TokenPair) {
		err := tokenfile.Save(path, &tokenfile.Session{
			Address: cc.Cfg.EthAddress,
			APIURL:  cc.Cfg.APIURL,
			Token:   pair.OAuth2Token(),
		})
		if err != nil {
			cc.Logger.Warn("could not save session", slog.String("path", path), slog.String("error", err.Error()))
			return
		}

		cc.Logger.Debug("session saved", slog.String("path", path))
	}
}

// openJobStore opens the local job history.
func openJobStore(ctx context.Context, cc *CLIContext) (*jobstore.Store, error) {
	store, err := jobstore.Open(ctx, cc.Cfg.JobDBPath(), cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening job history: %w", err)
	}

	return store, nil
}

// exitCode maps an error to the process exit status. A poll timeout gets its
// own code so scripts can resume the job.
func exitCode(err error) int {
	if errors.Is(err, mythx.ErrPollTimeout) {
		return exitPollTimeout
	}

	return 1
}

const exitPollTimeout = 2
