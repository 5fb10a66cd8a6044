package services

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// BatchRunner fans work items out across a bounded pool of workers and
// tallies their outcomes.
//
// A connection outage reported by any item sets the shared outage flag,
// stops further dispatch and ends collection; items not yet classified are
// counted as skipped. Items already in flight finish in the background
// and their results are discarded.
type BatchRunner struct {
	outage *domain.OutageFlag
}

// NewBatchRunner creates a runner that reports outages on flag.
func NewBatchRunner(flag *domain.OutageFlag) *BatchRunner {
	if flag == nil {
		flag = &domain.OutageFlag{}
	}
	return &BatchRunner{outage: flag}
}

// Outage returns the flag shared by all batches of this runner.
func (r *BatchRunner) Outage() *domain.OutageFlag {
	return r.outage
}

// workResult is sent from a worker to the collector.
type workResult struct {
	index   int
	outcome domain.ItemOutcome
	err     error

	// ran is false when the worker received the item after an outage
	// and returned it without processing.
	ran bool
}

// Run processes items with at most limit concurrent calls to proc.
// A limit below one is coerced to one.
//
// On return Successful+Failed+Skipped equals len(items).
func (r *BatchRunner) Run(
	ctx context.Context,
	job string,
	items []domain.WorkItem,
	limit int,
	proc ItemProcessor,
) domain.BatchSummary {
	summary := domain.BatchSummary{Total: len(items)}
	if r.outage.IsSet() {
		logger.Warn("job %s: repository outage in effect, skipping %d items", job, len(items))
		summary.Skipped = len(items)
		summary.OutageInterrupted = true
		return summary
	}
	if len(items) == 0 {
		return summary
	}
	if limit < 1 {
		logger.Warn("job %s: invalid concurrency %d, using 1", job, limit)
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	logger.Info("job %s: processing %d %s items with %d workers", job, len(items), proc.Kind(), limit)

	work := make(chan int)
	// Buffered so workers never block once the collector has stopped reading.
	results := make(chan workResult, len(items))
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	var wg sync.WaitGroup
	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if r.halted(ctx, stop) {
					results <- workResult{index: idx}
					continue
				}
				outcome, err := proc.Process(ctx, items[idx])
				if errors.Is(err, domain.ErrConnectionBroken) {
					r.outage.Set()
				}
				results <- workResult{index: idx, outcome: outcome, err: err, ran: true}
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range items {
			if r.halted(ctx, stop) {
				return
			}
			select {
			case work <- i:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	noClient := false
	for res := range results {
		if !res.ran {
			continue
		}
		item := items[res.index]

		if res.err != nil {
			if errors.Is(res.err, domain.ErrConnectionBroken) {
				logger.Error("job %s: connection broken while processing %q: %v", job, item.Identifier(), res.err)
				summary.Failed++
				summary.OutageInterrupted = true
				halt()
				break
			}
			// Processors fold all other errors into outcomes; treat a stray one as unexpected.
			logger.Error("job %s: processing %q: %v", job, item.Identifier(), res.err)
			summary.Record(domain.OutcomeFailedUnexpected)
			continue
		}

		summary.Record(res.outcome.Status)
		if res.outcome.Status == domain.OutcomeFailedNoClient {
			logger.Error("job %s: no repository client, stopping batch", job)
			noClient = true
			halt()
			break
		}
		if r.outage.IsSet() {
			logger.Warn("job %s: repository outage reported elsewhere, stopping batch", job)
			summary.OutageInterrupted = true
			halt()
			break
		}
	}

	// The flag may have been raised by another batch while this one ran.
	if r.outage.IsSet() {
		summary.OutageInterrupted = true
	}

	if remaining := summary.Remaining(); remaining > 0 {
		switch {
		case noClient:
			summary.Failed += remaining
		default:
			if ctx.Err() != nil {
				logger.Warn("job %s: cancelled, %d items not processed", job, remaining)
			}
			summary.Skipped += remaining
		}
	}

	logger.Info("job %s: %d succeeded, %d failed, %d skipped of %d",
		job, summary.Successful, summary.Failed, summary.Skipped, summary.Total)
	return summary
}

// halted reports whether dispatch must stop.
func (r *BatchRunner) halted(ctx context.Context, stop <-chan struct{}) bool {
	if r.outage.IsSet() || ctx.Err() != nil {
		return true
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
