/*
Package batch runs per-loan jobs across many loans concurrently.

PURPOSE:
  Within one loan, allocation and interest recalculation are strictly
  sequential - every period depends on the previous period's updated
  state. Across loans there is no shared state at all, so nightly jobs
  (reallocation after a rate change, schedule regeneration, delinquency
  refresh) fan out over a fixed worker pool, one loan per job.

FAILURE MODEL:
  One loan failing must not stop the batch. Failures are logged and
  collected into the summary; the caller decides whether to retry the
  failed loans. Context cancellation stops dispatching new loans but lets
  in-flight jobs finish.
*/
package batch

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job processes one loan. Implementations load the loan's schedule, run
// the engine, and persist the result.
type Job func(ctx context.Context, loanID string) error

// Summary reports the outcome of one batch run.
type Summary struct {
	Processed int
	Failed    int
	Errors    map[string]error
}

// Runner fans jobs out over a fixed worker pool.
type Runner struct {
	Workers int
	Logger  *zap.Logger
}

func NewRunner(workers int, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Workers: workers, Logger: logger}
}

// Run processes all loan IDs and returns a summary. Cancelling the
// context stops dispatching; loans never dispatched are not counted.
func (r *Runner) Run(ctx context.Context, loanIDs []string, job Job) Summary {
	ids := make(chan string)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary = Summary{Errors: map[string]error{}}
	)

	for w := 0; w < r.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for loanID := range ids {
				err := job(ctx, loanID)
				mu.Lock()
				if err != nil {
					summary.Failed++
					summary.Errors[loanID] = err
				} else {
					summary.Processed++
				}
				mu.Unlock()
				if err != nil {
					r.Logger.Warn("loan job failed",
						zap.String("loan_id", loanID),
						zap.Error(err),
					)
				}
			}
		}()
	}

dispatch:
	for _, loanID := range loanIDs {
		select {
		case <-ctx.Done():
			r.Logger.Info("batch cancelled", zap.Int("remaining", len(loanIDs)-summaryCount(&mu, &summary)))
			break dispatch
		case ids <- loanID:
		}
	}
	close(ids)
	wg.Wait()

	r.Logger.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

func summaryCount(mu *sync.Mutex, s *Summary) int {
	mu.Lock()
	defer mu.Unlock()
	return s.Processed + s.Failed
}
