package eval

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TrialResult pairs a trial index with its outcome: the trial id RecordTrial
// returned, or an error if the trial itself failed to run (as opposed to
// completing with a non-resolved outcome, which is not an error).
type TrialResult struct {
	Index   int
	TrialID int64
	Err     error
}

// RunPool runs n trials (produced by specAt) against runner with up to
// parallelism concurrent workers. cooldown is slept by each worker between
// its own sequential trials, letting background subject state settle
// (spec.md §4.6) — it is not applied between trials on different workers.
func RunPool(ctx context.Context, runner *Runner, n, parallelism int, cooldown time.Duration, specAt func(i int) Spec) []TrialResult {
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > n {
		parallelism = n
	}

	jobs := make(chan int)
	results := make([]TrialResult, n)
	for i := range results {
		results[i] = TrialResult{Index: i, Err: fmt.Errorf("eval: trial %d: not run", i)}
	}

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for i := range jobs {
				if !first && cooldown > 0 {
					_ = sleepCtx(ctx, cooldown)
				}
				first = false

				if err := ctx.Err(); err != nil {
					results[i] = TrialResult{Index: i, Err: err}
					continue
				}
				id, err := runner.Run(ctx, specAt(i))
				if err != nil {
					err = fmt.Errorf("eval: trial %d: %w", i, err)
				}
				results[i] = TrialResult{Index: i, TrialID: id, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return results
}
