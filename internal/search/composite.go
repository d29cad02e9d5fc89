package search

import (
	"context"
	"sync"

	"github.com/jmylchreest/delver/internal/logger"
)

// Composite fans a query out to every configured provider and unions
// their results. It fails only when every child failed and the union
// is empty, surfacing the first child error.
type Composite struct {
	providers []Service
}

// NewComposite creates a composite over the given providers.
func NewComposite(providers ...Service) *Composite {
	return &Composite{providers: providers}
}

// Search queries all children concurrently. Per-child errors are
// recorded and swallowed; the union preserves provider order, then
// first-seen order within each provider.
func (c *Composite) Search(ctx context.Context, query string) ([]Result, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoResults
	}

	type outcome struct {
		results []Result
		err     error
	}

	outcomes := make([]outcome, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(i int, p Service) {
			defer wg.Done()
			results, err := p.Search(ctx, query)
			outcomes[i] = outcome{results: results, err: err}
		}(i, p)
	}
	wg.Wait()

	var all []Result
	var firstErr error
	failures := 0
	for i, o := range outcomes {
		if o.err != nil {
			failures++
			if firstErr == nil {
				firstErr = o.err
			}
			logger.Debug("search provider failed", "provider", i, "error", o.err)
			continue
		}
		all = append(all, o.results...)
	}

	all = Dedupe(all)
	if failures == len(c.providers) && len(all) == 0 {
		return nil, firstErr
	}
	if len(all) == 0 {
		return nil, ErrNoResults
	}
	return all, nil
}
