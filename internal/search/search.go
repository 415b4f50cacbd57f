package search

import (
	"context"
	"errors"
)

// ErrSearchFailed wraps every provider failure so callers can tell a broken
// search apart from configuration or ranking problems.
var ErrSearchFailed = errors.New("search failed")

// Hit is a single search result from any provider.
type Hit struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Provider is a minimal interface for search providers. skip allows
// paginated fetches of the results.
type Provider interface {
	Search(ctx context.Context, term string, count, skip int) ([]Hit, error)
	Name() string
}

func page(hits []Hit, count, skip int) []Hit {
	if skip > 0 {
		if skip >= len(hits) {
			return nil
		}
		hits = hits[skip:]
	}
	if count > 0 && len(hits) > count {
		hits = hits[:count]
	}
	return hits
}
