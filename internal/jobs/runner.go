package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/caseops/caseaudit/pkg/log"
)

// Executor runs the processing pipeline for one job. On success the executor
// is responsible for the completion transition (it knows the case number and
// artifact); the runner converts a returned error into the failed transition.
type Executor func(ctx context.Context, job *JobRecord) error

// Runner executes jobs asynchronously, one goroutine per dispatched job. The
// submission path returns as soon as the record is persisted; the runner owns
// everything after that. Nothing escapes a runner goroutine: pipeline errors
// and panics both end as a failed record.
type Runner struct {
	store *Store
	wg    sync.WaitGroup
}

func NewRunner(store *Store) *Runner {
	return &Runner{store: store}
}

// Dispatch schedules the executor for a pending job and returns immediately.
func (r *Runner) Dispatch(jobID string, exec Executor) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Job %s panicked: %v", jobID, rec)
				if _, err := r.store.Fail(jobID, fmt.Sprintf("internal error: %v", rec)); err != nil {
					log.Error("Failed to record panic for job %s: %v", jobID, err)
				}
			}
		}()

		// The processing transition is persisted before any pipeline work so
		// a poller never sees a stale pending.
		job, err := r.store.MarkProcessing(jobID)
		if err != nil {
			log.Error("Job %s could not start: %v", jobID, err)
			return
		}

		if err := exec(context.Background(), job); err != nil {
			log.Warn("Job %s failed: %v", jobID, err)
			if _, failErr := r.store.Fail(jobID, err.Error()); failErr != nil {
				log.Error("Failed to record failure for job %s: %v", jobID, failErr)
			}
		}
	}()
}

// Wait blocks until all dispatched jobs have finished. Used on shutdown and
// in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
