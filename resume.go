package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/jobstore"
	"github.com/tonimelisma/mythx-go/internal/mythx"
)

func newResumeCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "resume [UUID]",
		Short: "Wait for a previously submitted analysis and print its issues",
		Long: `Resume waiting for an analysis that timed out. Polling starts immediately
and lasts at most --timeout.

Without a UUID, every unfinished job in the local history for the configured
account is resumed in turn.

Examples:
  mythx-go resume 0f6c9a5e-3b1d-4f0c-9d0a-2c1b6e7f8a90 --timeout 10m
  mythx-go resume`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, args, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to keep polling (default depends on the job's mode)")

	return cmd
}

func runResume(cmd *cobra.Command, args []string, timeout time.Duration) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	client, err := newClient(cc, clientOptions{})
	if err != nil {
		return err
	}

	store, err := openJobStore(ctx, cc)
	if err != nil {
		if len(args) == 0 {
			return err
		}

		cc.Logger.Warn("job history unavailable", slog.String("error", err.Error()))
		store = nil
	} else {
		defer store.Close()
	}

	if len(args) == 1 {
		id, err := parseUUID(args[0])
		if err != nil {
			return err
		}

		if timeout == 0 && store != nil {
			if job, err := store.Get(ctx, id); err == nil {
				timeout = timeoutForMode(cc, job.Mode)
			}
		}

		return resumeOne(ctx, cc, client, store, id, timeout)
	}

	return resumePending(ctx, cc, client, store, timeout)
}

// resumePending resumes every unfinished job recorded for the current
// account and endpoint, oldest first. Failures are collected so one stuck
// job does not hide the results of the others.
func resumePending(
	ctx context.Context, cc *CLIContext, client *mythx.Client, store *jobstore.Store, timeout time.Duration,
) error {
	jobs, err := store.List(ctx, 0, true)
	if err != nil {
		return err
	}

	var mine []jobstore.Job

	for i := len(jobs) - 1; i >= 0; i-- {
		j := jobs[i]
		if strings.EqualFold(j.Address, cc.Cfg.EthAddress) && j.APIURL == cc.Cfg.APIURL {
			mine = append(mine, j)
		}
	}

	if len(mine) == 0 {
		cc.Statusf("No unfinished analyses.\n")
		return nil
	}

	var errs []error

	for i := range mine {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		t := timeout
		if t == 0 {
			t = timeoutForMode(cc, mine[i].Mode)
		}

		if err := resumeOne(ctx, cc, client, store, mine[i].UUID, t); err != nil {
			cc.Logger.Error("resume failed", slog.String("uuid", mine[i].UUID), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func resumeOne(
	ctx context.Context, cc *CLIContext, client *mythx.Client, store *jobstore.Store, id string, timeout time.Duration,
) error {
	cc.Statusf("Resuming %s...\n", id)

	res, err := client.Resume(ctx, id, timeout)

	if store != nil {
		var issues mythx.Issues
		if res != nil {
			issues = res.Issues
		}

		recordJobOutcome(context.WithoutCancel(ctx), cc, store, id, issues, err)
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, resumeOutput{UUID: res.UUID, Issues: res.Issues})
	}

	fmt.Fprintf(cc.Out, "%s:\n", res.UUID)
	printIssues(cc.Out, res.Issues)

	return nil
}

type resumeOutput struct {
	UUID   string       `json:"uuid"`
	Issues mythx.Issues `json:"issues"`
}

// timeoutForMode returns the configured poll budget for a recorded mode.
func timeoutForMode(cc *CLIContext, mode string) time.Duration {
	if mode == mythx.ModeFull {
		return cc.Cfg.FullTimeout
	}

	return cc.Cfg.QuickTimeout
}
