package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"regai/internal/store"
)

// BatchResult pairs one submission with its cycle outcome.
type BatchResult struct {
	SubmissionID string
	Result       *Result
	Err          error
}

// RunBatch grades submissions concurrently, at most maxWorkers cycles in
// flight. Each cycle is internally sequential; only independent submissions
// run in parallel. Per-submission failures are collected, not propagated, so
// one bad submission never stops the batch. Results come back in input order.
func (p *Pipeline) RunBatch(ctx context.Context, subs []*store.Submission, maxWorkers int) []BatchResult {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	results := make([]BatchResult, len(subs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			res, err := p.Run(ctx, sub)
			results[i] = BatchResult{SubmissionID: sub.ID, Result: res, Err: err}
			if err != nil {
				p.logger.Error("batch: submission %s failed: %v", sub.ID, err)
			}
			return nil
		})
	}
	g.Wait()
	return results
}
