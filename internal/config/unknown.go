package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance bounds "did you mean?" suggestions.
const maxLevenshteinDistance = 3

// knownKeys are the valid top-level keys, sorted so that ties in edit
// distance resolve deterministically.
var knownKeys = []string{
	"api_url",
	"client_tool_name",
	"connect_timeout",
	"data_timeout",
	"eth_address",
	"full_timeout",
	"log_format",
	"log_level",
	"max_poll_interval",
	"password",
	"poll_interval",
	"quick_timeout",
	"state_dir",
	"user_agent",
}

// checkUnknownKeys reports every undecoded key. Nested keys are reported
// once, by their top-level name.
func checkUnknownKeys(md *toml.MetaData) error {
	var (
		errs []error
		seen = make(map[string]bool)
	)

	for _, key := range md.Undecoded() {
		top := strings.SplitN(key.String(), ".", 2)[0]
		if seen[top] {
			continue
		}

		seen[top] = true

		if suggestion := closestMatch(top, knownKeys); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q, did you mean %q?", top, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown config key %q", top))
		}
	}

	return errors.Join(errs...)
}

// closestMatch returns the known key nearest to unknown by edit distance,
// or "" if none is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		if d := levenshtein(unknown, k); d < bestDist {
			bestDist = d
			best = k
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings using a single
// pair of rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = slices.Min([]int{curr[j] + 1, prev[j+1] + 1, prev[j] + cost})
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
