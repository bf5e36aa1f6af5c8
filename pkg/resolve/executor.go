package resolve

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/audit"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/storage"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// SystemActor is the actor recorded for automatic resolutions.
const SystemActor = "system"

// execution is the executor's retained record of one resolution: the
// result plus the pre-resolution snapshot needed to undo it.
type execution struct {
	result *Result
	prior  *records.Record
	undone bool
}

// Executor runs strategies against conflicts and retains execution records
// for undo and redo. It is the failure-isolation boundary: strategy
// execution errors and inapplicable strategies are reported inside the
// Result, never thrown past ExecuteAuto. The only synchronous errors are
// malformed input and an unknown strategy ID.
type Executor struct {
	registry *strategy.Registry
	bus      *events.Broker
	store    storage.Store
	auditLog *audit.Log
	logger   *zerolog.Logger

	// assign picks the reviewer for resolutions routed to manual review.
	assign func(*conflict.Conflict) string

	mu      sync.RWMutex
	history map[string]*execution
	stats   map[strategy.ID]*Stats
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAssigner sets the reviewer assignment for resolutions routed to
// manual review.
func WithAssigner(assign func(*conflict.Conflict) string) ExecutorOption {
	return func(e *Executor) {
		e.assign = assign
	}
}

// NewExecutor creates an Executor. The store is optional; without one,
// resolutions are retained in memory only.
func NewExecutor(registry *strategy.Registry, bus *events.Broker, store storage.Store, auditLog *audit.Log, logger *zerolog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		bus:      bus,
		store:    store,
		auditLog: auditLog,
		logger:   logger,
		history:  make(map[string]*execution),
		stats:    make(map[strategy.ID]*Stats),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteAuto resolves one conflict with the named strategy.
//
// An unknown strategy ID and malformed conflict input fail synchronously.
// Everything else, including an inapplicable strategy and a strategy
// execution error, is reported inside the returned Result so a batch can
// keep going.
func (e *Executor) ExecuteAuto(ctx context.Context, c *conflict.Conflict, strategyID strategy.ID) (*Result, error) {
	if err := validateConflict(c); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrCanceled
	}

	s, ok := e.registry.Get(strategyID)
	if !ok {
		return nil, errors.NewNotFoundError("strategy", string(strategyID))
	}

	result := &Result{
		ResolutionID: uuid.NewString(),
		BookID:       c.BookID,
		StrategyUsed: strategyID,
		Timestamp:    time.Now(),
	}

	if !s.Applicable(c) {
		notApplicable := errors.NewNotApplicableError(string(strategyID), string(c.Type), c.BookID)
		result.Error = notApplicable.Error()
		e.recordFailure(result, notApplicable.Error())
		return result, nil
	}

	outcome, err := s.Execute(c)
	if err != nil {
		result.Error = errors.NewProcessingError(c.BookID, "execute", err).Error()
		e.recordFailure(result, err.Error())
		return result, nil
	}

	result.Success = true
	result.Notes = outcome.Notes

	if outcome.RequiresReview {
		result.RequiresReview = true
		result.ResolvedData = outcome.Record
		e.recordReview(c, result)
		return result, nil
	}

	result.ResolvedData = outcome.Record
	if err := e.recordSuccess(ctx, c, result); err != nil {
		// Persistence failure downgrades the result; the strategy output
		// is preserved in ResolvedData for the caller to inspect.
		result.Success = false
		result.Error = errors.NewProcessingError(c.BookID, "persist", err).Error()
		e.recordFailure(result, err.Error())
		return result, nil
	}
	return result, nil
}

// ExecuteBest resolves one conflict with the highest-confidence applicable
// strategy from the registry.
func (e *Executor) ExecuteBest(ctx context.Context, c *conflict.Conflict) (*Result, error) {
	if err := validateConflict(c); err != nil {
		return nil, err
	}
	best, err := e.registry.Best(c)
	if err != nil {
		return nil, err
	}
	return e.ExecuteAuto(ctx, c, best.ID())
}

// Undo reverses a resolution, restoring the pre-resolution snapshot. The
// original result is never mutated: undo appends a new result referencing
// it. Undoing an already-undone resolution is an error.
func (e *Executor) Undo(ctx context.Context, resolutionID, actor string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrCanceled
	}

	e.mu.Lock()
	exec, ok := e.history[resolutionID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.NewNotFoundError("resolution", resolutionID)
	}
	if exec.undone {
		e.mu.Unlock()
		return nil, errors.NewValidationError("resolution_id", resolutionID, "resolution already undone")
	}
	original := exec.result
	prior := exec.prior
	exec.undone = true
	e.mu.Unlock()

	if prior == nil && e.store != nil {
		loaded, err := e.store.LoadPriorState(ctx, original.BookID)
		if err != nil {
			return nil, errors.WrapProcessing(original.BookID, "undo", err)
		}
		prior = loaded
	}

	undo := &Result{
		ResolutionID:      uuid.NewString(),
		BookID:            original.BookID,
		Success:           true,
		StrategyUsed:      original.StrategyUsed,
		Timestamp:         time.Now(),
		PriorResolutionID: original.ResolutionID,
		Notes:             "restored pre-resolution state",
	}
	if prior != nil {
		undo.ResolvedData = prior.Clone()
	}

	e.auditLog.Record(audit.Entry{
		ResolutionID: original.ResolutionID,
		BookID:       original.BookID,
		Action:       audit.ActionUndone,
		Actor:        actor,
	})
	e.logger.Info().
		Str("resolution_id", original.ResolutionID).
		Str("book_id", original.BookID).
		Str("actor", actor).
		Msg("Resolution undone")
	return undo, nil
}

// Redo re-applies a previously undone resolution without recomputation:
// the original resolved data is restored as-is.
func (e *Executor) Redo(ctx context.Context, resolutionID, actor string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ErrCanceled
	}

	e.mu.Lock()
	exec, ok := e.history[resolutionID]
	if !ok {
		e.mu.Unlock()
		return nil, errors.NewNotFoundError("resolution", resolutionID)
	}
	if !exec.undone {
		e.mu.Unlock()
		return nil, errors.NewValidationError("resolution_id", resolutionID, "resolution is not undone")
	}
	original := exec.result
	exec.undone = false
	e.mu.Unlock()

	redo := &Result{
		ResolutionID:      uuid.NewString(),
		BookID:            original.BookID,
		Success:           true,
		StrategyUsed:      original.StrategyUsed,
		Timestamp:         time.Now(),
		PriorResolutionID: original.ResolutionID,
		Notes:             "re-applied resolved state",
	}
	if original.ResolvedData != nil {
		redo.ResolvedData = original.ResolvedData.Clone()
	}

	e.auditLog.Record(audit.Entry{
		ResolutionID: original.ResolutionID,
		BookID:       original.BookID,
		Action:       audit.ActionRedone,
		Actor:        actor,
	})
	e.logger.Info().
		Str("resolution_id", original.ResolutionID).
		Str("book_id", original.BookID).
		Str("actor", actor).
		Msg("Resolution redone")
	return redo, nil
}

// Result returns a retained resolution result by ID.
func (e *Executor) Result(resolutionID string) (*Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	exec, ok := e.history[resolutionID]
	if !ok {
		return nil, false
	}
	return exec.result, true
}

// Stats returns a snapshot of the per-strategy execution counters.
func (e *Executor) Stats() map[strategy.ID]Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[strategy.ID]Stats, len(e.stats))
	for id, s := range e.stats {
		out[id] = *s
	}
	return out
}

// recordSuccess retains the execution, persists it, and announces it.
func (e *Executor) recordSuccess(ctx context.Context, c *conflict.Conflict, result *Result) error {
	var prior *records.Record
	if c.Target != nil {
		prior = c.Target.Clone()
	}

	if e.store != nil {
		err := e.store.PersistResolution(ctx, storage.PersistedResolution{
			ResolutionID: result.ResolutionID,
			BookID:       result.BookID,
			StrategyUsed: string(result.StrategyUsed),
			Resolved:     result.ResolvedData,
			Prior:        prior,
		})
		if err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.history[result.ResolutionID] = &execution{result: result, prior: prior}
	e.bumpStats(result.StrategyUsed, func(s *Stats) { s.Successes++ })
	e.mu.Unlock()

	e.auditLog.Record(audit.Entry{
		ResolutionID: result.ResolutionID,
		BookID:       result.BookID,
		Action:       audit.ActionResolved,
		Actor:        SystemActor,
		Reason:       result.Notes,
	})
	e.bus.Publish(events.ConflictResolved, events.ResolvedPayload{
		ResolutionID: result.ResolutionID,
		BookID:       result.BookID,
		StrategyUsed: string(result.StrategyUsed),
	})
	e.logger.Info().
		Str("resolution_id", result.ResolutionID).
		Str("book_id", result.BookID).
		Str("strategy", string(result.StrategyUsed)).
		Msg("Conflict resolved")
	return nil
}

// recordReview retains the execution and routes it to manual review.
func (e *Executor) recordReview(c *conflict.Conflict, result *Result) {
	var prior *records.Record
	if c.Target != nil {
		prior = c.Target.Clone()
	}
	if e.assign != nil {
		result.AssignedUser = e.assign(c)
	}

	e.mu.Lock()
	e.history[result.ResolutionID] = &execution{result: result, prior: prior}
	e.bumpStats(result.StrategyUsed, func(s *Stats) { s.ReviewRouted++ })
	e.mu.Unlock()

	e.auditLog.Record(audit.Entry{
		ResolutionID: result.ResolutionID,
		BookID:       result.BookID,
		Action:       audit.ActionReviewRequested,
		Actor:        SystemActor,
		Reason:       result.Notes,
	})
	e.bus.Publish(events.ManualResolutionRequested, events.ManualReviewPayload{
		ResolutionID: result.ResolutionID,
		BookID:       result.BookID,
		AssignedUser: result.AssignedUser,
	})
	e.logger.Info().
		Str("resolution_id", result.ResolutionID).
		Str("book_id", result.BookID).
		Str("strategy", string(result.StrategyUsed)).
		Str("assigned_user", result.AssignedUser).
		Msg("Conflict routed to manual review")
}

// recordFailure counts and audits an isolated per-item failure.
func (e *Executor) recordFailure(result *Result, reason string) {
	e.mu.Lock()
	e.bumpStats(result.StrategyUsed, func(s *Stats) { s.Failures++ })
	e.mu.Unlock()

	e.auditLog.Record(audit.Entry{
		ResolutionID: result.ResolutionID,
		BookID:       result.BookID,
		Action:       audit.ActionFailed,
		Actor:        SystemActor,
		Reason:       reason,
	})
	e.logger.Warn().
		Str("resolution_id", result.ResolutionID).
		Str("book_id", result.BookID).
		Str("strategy", string(result.StrategyUsed)).
		Str("reason", reason).
		Msg("Resolution failed")
}

// bumpStats updates a strategy's counters; callers hold the lock.
func (e *Executor) bumpStats(id strategy.ID, update func(*Stats)) {
	s, ok := e.stats[id]
	if !ok {
		s = &Stats{}
		e.stats[id] = s
	}
	s.Executions++
	update(s)
}

// validateConflict checks the fields the executor relies on.
func validateConflict(c *conflict.Conflict) error {
	if c == nil {
		return errors.NewValidationError("conflict", nil, "conflict is nil")
	}
	if c.BookID == "" {
		return errors.NewValidationError("book_id", c, "conflict has no book ID")
	}
	if c.Source == nil || c.Target == nil {
		return errors.NewValidationError("conflict", c.BookID, "conflict is missing a replica")
	}
	return nil
}
