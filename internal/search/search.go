// Package search provides web search providers for the research agent.
package search

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors shared by all providers.
var (
	ErrInvalidQuery    = errors.New("search: invalid query")
	ErrInvalidURL      = errors.New("search: invalid url")
	ErrInvalidResponse = errors.New("search: invalid response")
	ErrNoResults       = errors.New("search: no results found")
)

// Result is a single search hit. Two results are equal iff their URLs
// are equal.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Service abstracts a search backend.
type Service interface {
	// Search returns ordered results for the query.
	Search(ctx context.Context, query string) ([]Result, error)
}

// NormalizeURL makes a result URL absolute. Protocol-relative URLs
// ("//host/path") are given an https scheme.
func NormalizeURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// Dedupe removes results whose URL has already been seen, preserving
// first-seen order.
func Dedupe(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
