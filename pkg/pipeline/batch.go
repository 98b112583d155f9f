package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs one request's outcome with its error. Exactly one of
// Result and Err is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// RunBatch executes independent runs concurrently, at most BatchConcurrency
// at a time. Failures stay isolated: one dataset erroring never cancels the
// others, only parent-context cancellation does. Results are returned in
// request order.
func (p *Pipeline) RunBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.Run(gctx, req)
			results[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	// Goroutines always return nil; per-item errors live in results.
	_ = g.Wait()

	return results
}
