package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/resolve"
)

// Orchestrator runs batch resolutions. It processes items sequentially in
// sub-batches, isolating every per-item failure; only cancellation and an
// exhausted memory limit stop a run early.
type Orchestrator struct {
	executor     *resolve.Executor
	bus          *events.Broker
	logger       *zerolog.Logger
	subBatchSize int
	memoryLimit  int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSubBatchSize overrides the sub-batch size.
func WithSubBatchSize(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.subBatchSize = size
		}
	}
}

// WithMemoryLimit bounds the working set, in bytes. Zero means unbounded.
func WithMemoryLimit(limit int64) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.memoryLimit = limit
		}
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(executor *resolve.Executor, bus *events.Broker, logger *zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		executor:     executor,
		bus:          bus,
		logger:       logger,
		subBatchSize: DefaultSubBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs a batch to completion on the calling goroutine.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	return o.newJob(req).run(ctx)
}

// Start runs a batch on its own goroutine and returns its handle. The
// handle's Cancel takes effect at the next item boundary.
func (o *Orchestrator) Start(ctx context.Context, req Request) *Job {
	job := o.newJob(req)
	go func() {
		result, err := job.run(ctx)
		job.finish(result, err)
	}()
	return job
}

func (o *Orchestrator) newJob(req Request) *Job {
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}
	return &Job{orchestrator: o, req: req, done: make(chan struct{})}
}

// run is the batch loop. Cancellation is cooperative: both the job's
// Cancel flag and the context are checked once per item, so the item in
// flight always completes before the run stops.
func (j *Job) run(ctx context.Context) (*Result, error) {
	o := j.orchestrator
	req := j.req
	started := time.Now()
	ctx = logging.WithBatchID(ctx, req.BatchID)

	total := len(req.Conflicts)
	result := &Result{
		BatchID:    req.BatchID,
		TotalCount: total,
	}
	tracker := newMemoryTracker(o.memoryLimit)

	o.logger.Info().
		Str("batch_id", req.BatchID).
		Int("total", total).
		Int("sub_batch_size", o.subBatchSize).
		Msg("Batch started")

	for i, c := range req.Conflicts {
		if j.cancelled.Load() {
			return j.cancel(result, tracker, started, nil)
		}
		if ctx.Err() != nil {
			return j.cancel(result, tracker, started, errors.ErrCanceled)
		}

		cost := itemCost(c)
		if !tracker.fits(cost) {
			tracker.cleanup()
			if !tracker.fits(cost) {
				// The limit cannot admit even a fresh working set; this
				// is an engine fault, not a per-item failure.
				result.Duration = time.Since(started)
				result.Memory = tracker.metrics()
				return result, errors.ErrMemoryLimit
			}
		}
		tracker.admit(cost)

		j.processItem(ctx, c, result)
		result.ProcessedCount++

		o.bus.Publish(events.BatchProgress, events.ProgressPayload{
			BatchID:   req.BatchID,
			Completed: result.ProcessedCount,
			Total:     total,
		})

		if (i+1)%o.subBatchSize == 0 || i == total-1 {
			result.SubBatches++
			size := (i % o.subBatchSize) + 1
			o.bus.Publish(events.BatchSubBatchCompleted, events.SubBatchPayload{
				BatchID: req.BatchID,
				Index:   result.SubBatches,
				Size:    size,
				Of:      (total + o.subBatchSize - 1) / o.subBatchSize,
			})
			tracker.cleanup()
		}
	}

	result.Duration = time.Since(started)
	result.Memory = tracker.metrics()

	o.bus.Publish(events.BatchCompleted, events.BatchCompletedPayload{
		BatchID:        req.BatchID,
		ProcessedCount: result.ProcessedCount,
		SuccessCount:   result.SuccessCount,
		ErrorCount:     result.ErrorCount,
	})
	o.logger.Info().
		Str("batch_id", req.BatchID).
		Int("processed", result.ProcessedCount).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.ErrorCount).
		Dur("duration", result.Duration).
		Msg("Batch completed")
	return result, nil
}

// processItem resolves one conflict, folding any failure into the result.
// Nothing an item does can abort the batch.
func (j *Job) processItem(ctx context.Context, c *conflict.Conflict, result *Result) {
	o := j.orchestrator

	var (
		res *resolve.Result
		err error
	)
	if j.req.StrategyID != "" {
		res, err = o.executor.ExecuteAuto(ctx, c, j.req.StrategyID)
	} else {
		res, err = o.executor.ExecuteBest(ctx, c)
	}

	switch {
	case err != nil:
		result.ErrorCount++
		result.Errors = append(result.Errors, ItemError{
			BookID:  bookID(c),
			Message: err.Error(),
		})
	case res.Error != "":
		result.ErrorCount++
		result.Errors = append(result.Errors, ItemError{
			BookID:  res.BookID,
			Message: res.Error,
		})
	default:
		result.SuccessCount++
		if res.RequiresReview {
			result.ReviewCount++
		}
	}
}

// cancel finalizes a cancelled run. The partial result is returned either
// way; an explicit Cancel yields no error, a dead context reports one.
func (j *Job) cancel(result *Result, tracker *memoryTracker, started time.Time, err error) (*Result, error) {
	o := j.orchestrator
	result.Cancelled = true
	result.Duration = time.Since(started)
	result.Memory = tracker.metrics()

	o.bus.Publish(events.BatchCancelled, events.BatchCancelledPayload{
		BatchID:        j.req.BatchID,
		ProcessedCount: result.ProcessedCount,
	})
	o.logger.Info().
		Str("batch_id", j.req.BatchID).
		Int("processed", result.ProcessedCount).
		Int("total", result.TotalCount).
		Msg("Batch cancelled")
	return result, err
}

func bookID(c *conflict.Conflict) string {
	if c == nil {
		return ""
	}
	return c.BookID
}
