package main

import (
	"golang.org/x/text/unicode/norm"
)

// normalizeSources rewrites the source paths in a submission payload to NFC
// so the service sees the same key for a file regardless of the filesystem
// it was read from (macOS reports NFD names).
func normalizeSources(data map[string]any) {
	if sources, ok := data["sources"].(map[string]any); ok {
		normalized := make(map[string]any, len(sources))
		for name, src := range sources {
			normalized[norm.NFC.String(name)] = src
		}

		data["sources"] = normalized
	}

	if list, ok := data["sourceList"].([]any); ok {
		for i, v := range list {
			if name, ok := v.(string); ok {
				list[i] = norm.NFC.String(name)
			}
		}
	}

	if mainSource, ok := data["mainSource"].(string); ok {
		data["mainSource"] = norm.NFC.String(mainSource)
	}
}
