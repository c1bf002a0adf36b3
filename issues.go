package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/mythx-go/internal/mythx"
)

func newIssuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issues UUID",
		Short: "Print the issues reported for a finished analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  runIssues,
	}
}

func runIssues(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	id, err := parseUUID(args[0])
	if err != nil {
		return err
	}

	client, err := newClient(cc, clientOptions{})
	if err != nil {
		return err
	}

	issues, err := client.Issues(cmd.Context(), id)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, issues)
	}

	printIssues(cc.Out, issues)

	return nil
}

// parseUUID validates a job uuid before it is put in a request path.
func parseUUID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid analysis uuid %q: %w", s, err)
	}

	return id.String(), nil
}

// issueEntry is the subset of a detected-issue record shown in tables.
type issueEntry struct {
	SWCID       string `json:"swcID"`
	SWCTitle    string `json:"swcTitle"`
	Severity    string `json:"severity"`
	Description struct {
		Head string `json:"head"`
	} `json:"description"`
}

// issueReport is one element of the issues response. The service groups
// detected issues per source format; older responses list them flat.
type issueReport struct {
	Issues []issueEntry `json:"issues"`
}

// flattenIssues extracts displayable entries from the raw report list.
// Entries that do not decode are skipped.
func flattenIssues(issues mythx.Issues) []issueEntry {
	var out []issueEntry

	for _, raw := range issues {
		var report issueReport
		if err := json.Unmarshal(raw, &report); err == nil && report.Issues != nil {
			out = append(out, report.Issues...)
			continue
		}

		var entry issueEntry
		if err := json.Unmarshal(raw, &entry); err == nil {
			out = append(out, entry)
		}
	}

	return out
}

func countIssues(issues mythx.Issues) int {
	return len(flattenIssues(issues))
}

func printIssues(w io.Writer, issues mythx.Issues) {
	entries := flattenIssues(issues)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title := e.SWCTitle
		if title == "" {
			title = e.Description.Head
		}

		rows = append(rows, []string{orDash(e.SWCID), orDash(e.Severity), orDash(title)})
	}

	printTable(w, []string{"SWC", "SEVERITY", "TITLE"}, rows)
}
