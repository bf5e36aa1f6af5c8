package batch

import (
	"sync"
	"sync/atomic"
)

// Job is the handle for a running batch. Cancel may be called from any
// goroutine, including an event subscriber running inside the batch loop;
// it takes effect at the next item boundary.
type Job struct {
	orchestrator *Orchestrator
	req          Request

	cancelled atomic.Bool

	done     chan struct{}
	finishMu sync.Mutex
	result   *Result
	err      error
}

// BatchID returns the run's identifier.
func (j *Job) BatchID() string {
	return j.req.BatchID
}

// Cancel requests cooperative cancellation. The item currently in flight
// completes; no further items start.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Done returns a channel closed when the run finishes.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the run finishes and returns its result.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	j.finishMu.Lock()
	defer j.finishMu.Unlock()
	return j.result, j.err
}

// finish records the outcome and releases waiters.
func (j *Job) finish(result *Result, err error) {
	j.finishMu.Lock()
	j.result = result
	j.err = err
	j.finishMu.Unlock()
	close(j.done)
}
