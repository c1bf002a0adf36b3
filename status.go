package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/mythx-go/internal/jobstore"
	"github.com/tonimelisma/mythx-go/internal/mythx"
)

// statusConcurrency bounds parallel status requests.
const statusConcurrency = 4

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status UUID...",
		Short: "Show the status of one or more analyses",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	ids := make([]string, len(args))
	for i, arg := range args {
		id, err := parseUUID(arg)
		if err != nil {
			return err
		}

		ids[i] = id
	}

	client, err := newClient(cc, clientOptions{})
	if err != nil {
		return err
	}

	results, err := fetchStatuses(ctx, client, ids)
	if err != nil {
		return err
	}

	syncJobStatuses(ctx, cc, results)

	if cc.Flags.JSON {
		return printJSON(cc.Out, results)
	}

	printAnalyses(cc, results)

	return nil
}

// fetchStatuses queries every uuid with bounded concurrency. Results keep the
// order of ids; the first failure cancels the rest.
func fetchStatuses(ctx context.Context, client *mythx.Client, ids []string) ([]mythx.Analysis, error) {
	results := make([]mythx.Analysis, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			a, err := client.Status(gctx, id)
			if err != nil {
				return err
			}

			results[i] = *a

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// syncJobStatuses refreshes recorded jobs with the statuses just fetched.
// Jobs submitted elsewhere are not in the history and are skipped.
func syncJobStatuses(ctx context.Context, cc *CLIContext, analyses []mythx.Analysis) {
	store, err := openJobStore(ctx, cc)
	if err != nil {
		cc.Logger.Debug("job history unavailable", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	refreshJobs(ctx, cc.Logger, store, analyses)
}

// jobStatusStore is the part of jobstore.Store that refreshJobs needs.
type jobStatusStore interface {
	Get(ctx context.Context, uuid string) (*jobstore.Job, error)
	UpdateStatus(ctx context.Context, uuid, status string, issueCount *int, errMsg string) error
}

func refreshJobs(ctx context.Context, logger *slog.Logger, store jobStatusStore, analyses []mythx.Analysis) {
	for i := range analyses {
		a := &analyses[i]

		job, err := store.Get(ctx, a.UUID)
		if errors.Is(err, jobstore.ErrNotFound) {
			continue
		}

		if err != nil {
			logger.Debug("could not read job history", slog.String("uuid", a.UUID), slog.String("error", err.Error()))
			continue
		}

		if job.Status == string(a.Status) {
			continue
		}

		if err := store.UpdateStatus(ctx, a.UUID, string(a.Status), job.IssueCount, a.Error); err != nil {
			logger.Warn("could not update job history", slog.String("uuid", a.UUID), slog.String("error", err.Error()))
		}
	}
}

func printAnalyses(cc *CLIContext, analyses []mythx.Analysis) {
	rows := make([][]string, 0, len(analyses))
	for i := range analyses {
		a := &analyses[i]
		rows = append(rows, []string{
			a.UUID,
			string(a.Status),
			orDash(a.UpstreamAnalysisMode),
			formatAPITime(a.SubmittedAt),
			formatRunTime(a.RunTime),
			orDash(a.Error),
		})
	}

	printTable(cc.Out, []string{"UUID", "STATUS", "MODE", "SUBMITTED", "RUN TIME", "ERROR"}, rows)
}

func printJobs(cc *CLIContext, jobs []jobstore.Job) {
	rows := make([][]string, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]

		issues := "-"
		if j.IssueCount != nil {
			issues = strconv.Itoa(*j.IssueCount)
		}

		rows = append(rows, []string{
			j.UUID,
			j.Status,
			orDash(j.Mode),
			formatTime(j.SubmittedAt),
			issues,
			orDash(j.Source),
		})
	}

	printTable(cc.Out, []string{"UUID", "STATUS", "MODE", "SUBMITTED", "ISSUES", "SOURCE"}, rows)
}
