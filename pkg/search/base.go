// Package search provides the web search collaborator used to gather evidence
// for knowledge answers and to find official application websites.
package search

import (
	"context"
	"errors"
	"strings"
)

// ErrNoResults is returned when a search completes without any result.
var ErrNoResults = errors.New("no search results")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs web searches.
type Searcher interface {
	// Search returns at most n results for query. An empty slice is a valid answer.
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Snippets joins the non-empty snippets of results with newlines.
func Snippets(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Snippet); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// FirstLink returns the link of the first result for query, or ErrNoResults.
func FirstLink(ctx context.Context, s Searcher, query string) (string, error) {
	results, err := s.Search(ctx, query, 1)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if r.Link != "" {
			return r.Link, nil
		}
	}
	return "", ErrNoResults
}

func clampCount(n, max int) int {
	if n <= 0 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
