package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/mythx"
)

type listFlags struct {
	from   string
	to     string
	offset int
}

func newListCmd() *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses submitted by this account",
		Long: `List analyses known to the service for the configured account.

With --from, only analyses submitted in the given window are listed. Dates are
RFC 3339 timestamps or YYYY-MM-DD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.from, "from", "", "earliest submission date")
	f.StringVar(&flags.to, "to", "", "latest submission date (requires --from)")
	f.IntVar(&flags.offset, "offset", 0, "number of analyses to skip (requires --from)")

	return cmd
}

func runList(cmd *cobra.Command, flags listFlags) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	if flags.from == "" && (flags.to != "" || flags.offset != 0) {
		return fmt.Errorf("--to and --offset require --from")
	}

	if flags.offset < 0 {
		return fmt.Errorf("--offset must not be negative")
	}

	var q mythx.AnalysesQuery

	if flags.from != "" {
		from, err := parseDate(flags.from)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}

		q = mythx.AnalysesQuery{DateFrom: from, Offset: flags.offset}

		if flags.to != "" {
			if q.DateTo, err = parseDate(flags.to); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
		}
	}

	client, err := newClient(cc, clientOptions{})
	if err != nil {
		return err
	}

	var list *mythx.AnalysisList
	if q.DateFrom.IsZero() {
		list, err = client.ListAnalyses(ctx)
	} else {
		list, err = client.Analyses(ctx, q)
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, list)
	}

	if len(list.Analyses) == 0 {
		cc.Statusf("No analyses found.\n")
		return nil
	}

	printAnalyses(cc, list.Analyses)
	cc.Statusf("%d of %d analyses shown.\n", len(list.Analyses), list.Total)

	return nil
}

// parseDate accepts an RFC 3339 timestamp or a calendar date (UTC midnight).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}

	return t, nil
}
