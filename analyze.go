package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/jobstore"
	"github.com/tonimelisma/mythx-go/internal/mythx"
)

type analyzeFlags struct {
	mode         string
	timeout      time.Duration
	initialDelay time.Duration
	noCache      bool
	watch        bool
}

func newAnalyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Submit a contract for analysis and print the issues",
		Long: `Submit the analysis payload in FILE and wait for the issues.

FILE holds the JSON data object sent to the service (contractName, bytecode,
sources, mainSource, ...), optionally wrapped in {"data": ...}. Source paths
are normalized to NFC before submission.

If the job does not finish within the timeout, the command exits with status 2
and prints the uuid to pass to "mythx-go resume".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.mode, "mode", "", "analysis mode: quick or full (overrides analysisMode in FILE)")
	f.DurationVar(&flags.timeout, "timeout", 0, "total time to wait for the job (default depends on mode)")
	f.DurationVar(&flags.initialDelay, "initial-delay", 0, "wait before the first status check (at least 45s)")
	f.BoolVar(&flags.noCache, "no-cache", false, "skip the service's result cache")
	f.BoolVar(&flags.watch, "watch", false, "resubmit whenever FILE changes")

	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, flags analyzeFlags) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	if flags.mode != "" && flags.mode != mythx.ModeQuick && flags.mode != mythx.ModeFull {
		return fmt.Errorf("invalid --mode %q: must be %q or %q", flags.mode, mythx.ModeQuick, mythx.ModeFull)
	}

	client, err := newClient(cc, clientOptions{})
	if err != nil {
		return err
	}

	// History is a convenience; analysis proceeds without it.
	store, err := openJobStore(ctx, cc)
	if err != nil {
		cc.Logger.Warn("job history unavailable", slog.String("error", err.Error()))
		store = nil
	} else {
		defer store.Close()
	}

	a := &analyzer{cc: cc, client: client, store: store, path: path, flags: flags}

	if !flags.watch {
		return a.run(ctx)
	}

	watcher, err := newFsnotifyWatcher()
	if err != nil {
		return err
	}

	return watchFile(ctx, watcher, path, watchDebounce, cc.Logger, a.run)
}

// analyzer submits one payload file and reports the outcome.
type analyzer struct {
	cc     *CLIContext
	client *mythx.Client
	store  *jobstore.Store
	path   string
	flags  analyzeFlags
}

func (a *analyzer) run(ctx context.Context) error {
	data, err := loadPayload(a.path)
	if err != nil {
		return err
	}

	if a.flags.mode != "" {
		data["analysisMode"] = a.flags.mode
	}

	normalizeSources(data)

	mode, _ := data["analysisMode"].(string)
	if mode == "" {
		mode = mythx.ModeQuick
	}

	var uuid string

	sub := &mythx.Submission{
		Data:          data,
		Timeout:       a.flags.timeout,
		InitialDelay:  a.flags.initialDelay,
		Debug:         a.cc.Flags.Debug,
		NoCacheLookup: a.flags.noCache,
		Submitted: func(an *mythx.Analysis) {
			uuid = an.UUID
			a.recordSubmitted(ctx, an, mode)
			a.cc.Statusf("Submitted %s (%s), waiting for results...\n", an.UUID, an.Status)
		},
	}

	res, err := a.client.AnalyzeWithStatus(ctx, sub)
	if uuid != "" {
		a.recordOutcome(ctx, uuid, res, err)
	}

	if err != nil {
		return err
	}

	if a.cc.Flags.JSON {
		return printJSON(a.cc.Out, analyzeOutput{
			UUID:    res.Status.UUID,
			Status:  res.Status.Status,
			Elapsed: res.Elapsed.Round(time.Millisecond).String(),
			Issues:  res.Issues,
		})
	}

	a.cc.Statusf("Analysis %s finished in %s.\n", res.Status.UUID, res.Elapsed.Round(time.Second))
	printIssues(a.cc.Out, res.Issues)

	return nil
}

type analyzeOutput struct {
	UUID    string       `json:"uuid"`
	Status  mythx.Status `json:"status"`
	Elapsed string       `json:"elapsed"`
	Issues  mythx.Issues `json:"issues"`
}

func (a *analyzer) recordSubmitted(ctx context.Context, an *mythx.Analysis, mode string) {
	if a.store == nil {
		return
	}

	source, err := filepath.Abs(a.path)
	if err != nil {
		source = a.path
	}

	err = a.store.Record(ctx, &jobstore.Job{
		UUID:    an.UUID,
		Address: a.cc.Cfg.EthAddress,
		APIURL:  a.cc.Cfg.APIURL,
		Mode:    mode,
		Source:  source,
		Status:  string(an.Status),
	})
	if err != nil {
		a.cc.Logger.Warn("could not record job", slog.String("uuid", an.UUID), slog.String("error", err.Error()))
	}
}

func (a *analyzer) recordOutcome(ctx context.Context, uuid string, res *mythx.StatusResult, err error) {
	if a.store == nil {
		return
	}

	var issues mythx.Issues
	if res != nil {
		issues = res.Issues
	}

	recordJobOutcome(context.WithoutCancel(ctx), a.cc, a.store, uuid, issues, err)
}

// recordJobOutcome stores the result of waiting on a job. A failed write is
// logged and never replaces the command's own result.
func recordJobOutcome(ctx context.Context, cc *CLIContext, store *jobstore.Store, uuid string, issues mythx.Issues, outcome error) {
	var (
		status string
		count  *int
		msg    string

		timeoutErr *mythx.PollTimeoutError
		failedErr  *mythx.AnalysisFailedError
	)

	switch {
	case outcome == nil:
		status = string(mythx.StatusFinished)
		n := countIssues(issues)
		count = &n
	case errors.As(outcome, &timeoutErr):
		if timeoutErr.LastStatus == "" {
			return
		}

		status = string(timeoutErr.LastStatus)
	case errors.As(outcome, &failedErr):
		status = string(mythx.StatusError)
		msg = failedErr.Message
	default:
		// Transport or auth failures say nothing about the job itself.
		return
	}

	if err := store.UpdateStatus(ctx, uuid, status, count, msg); err != nil {
		cc.Logger.Warn("could not update job history", slog.String("uuid", uuid), slog.String("error", err.Error()))
	}
}

// loadPayload reads the analysis data object from path. Numbers are kept as
// json.Number so large integers in compiler output survive unchanged.
func loadPayload(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing payload %s: %w", path, err)
	}

	if inner, ok := data["data"].(map[string]any); ok && len(data) == 1 {
		data = inner
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("payload %s is empty", path)
	}

	return data, nil
}
