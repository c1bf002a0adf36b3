package main

import (
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	var (
		limit   int
		pending bool
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show analyses submitted from this machine",
		Long: `Show the local history of submitted analyses, most recent first. The
history is updated by analyze, resume, and status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cc := mustCLIContext(ctx)

			store, err := openJobStore(ctx, cc)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(ctx, limit, pending)
			if err != nil {
				return err
			}

			if cc.Flags.JSON {
				return printJSON(cc.Out, jobs)
			}

			if len(jobs) == 0 {
				cc.Statusf("No analyses recorded.\n")
				return nil
			}

			printJobs(cc, jobs)

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of jobs to show")
	cmd.Flags().BoolVar(&pending, "pending", false, "only show unfinished jobs")

	return cmd
}
