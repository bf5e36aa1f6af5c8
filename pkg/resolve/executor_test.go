package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/audit"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/storage"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	executor  *Executor
	registry  *strategy.Registry
	store     *storage.MemoryStore
	auditLog  *audit.Log
	collector *events.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewTestLogger(t)
	bus := events.NewBroker(logger.Logger)
	collector := events.NewCollector()
	bus.Subscribe("*", collector)

	registry := strategy.NewRegistry()
	store := storage.NewMemoryStore()
	auditLog := audit.NewLog()

	return &fixture{
		executor:  NewExecutor(registry, bus, store, auditLog, logger.Logger),
		registry:  registry,
		store:     store,
		auditLog:  auditLog,
		collector: collector,
	}
}

func progressConflict(t *testing.T) *conflict.Conflict {
	t.Helper()
	return &conflict.Conflict{
		Type:   conflict.ProgressMismatch,
		BookID: "bk-1",
		Source: &records.Record{
			BookID: "bk-1", Title: "Dune", Progress: 75, LastUpdated: baseTime,
		},
		Target: &records.Record{
			BookID: "bk-1", Title: "Dune", Progress: 45, LastUpdated: baseTime.Add(-time.Hour),
		},
		Details:    conflict.Details{ProgressDiff: 30},
		Severity:   conflict.SeverityMedium,
		Confidence: 0.9,
	}
}

func TestExecuteAutoResolves(t *testing.T) {
	f := newFixture(t)

	result, err := f.executor.ExecuteAuto(context.Background(), progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.NotEmpty(t, result.ResolutionID)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.ResolvedData)
	assert.Equal(t, 75.0, result.ResolvedData.Progress, "the newer replica wins")

	// persisted with the prior snapshot
	persisted, ok := f.store.Resolution(result.ResolutionID)
	require.True(t, ok)
	require.NotNil(t, persisted.Prior)
	assert.Equal(t, 45.0, persisted.Prior.Progress)

	// announced and audited
	assert.Equal(t, 1, f.collector.Count(events.ConflictResolved))
	entries := f.auditLog.ByResolution(result.ResolutionID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionResolved, entries[0].Action)
}

func TestExecuteAutoUnknownStrategyFailsSynchronously(t *testing.T) {
	f := newFixture(t)

	result, err := f.executor.ExecuteAuto(context.Background(), progressConflict(t), "no-such-strategy")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Nil(t, result)
}

func TestExecuteAutoInapplicableStrategyReportedInResult(t *testing.T) {
	f := newFixture(t)

	c := progressConflict(t)
	c.Type = conflict.TitleDifference // latest-timestamp refuses title conflicts

	result, err := f.executor.ExecuteAuto(context.Background(), c, strategy.UseLatestTimestamp)
	require.NoError(t, err, "inapplicability is a reported failure, not an error")
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not applicable")
	assert.Contains(t, result.Error, c.BookID, "failure stays correlated to the book")
	assert.Nil(t, result.ResolvedData)
}

func TestExecuteAutoValidationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.executor.ExecuteAuto(ctx, nil, strategy.ManualReview)
	assert.True(t, errors.IsValidationError(err))

	c := progressConflict(t)
	c.BookID = ""
	_, err = f.executor.ExecuteAuto(ctx, c, strategy.ManualReview)
	assert.True(t, errors.IsValidationError(err))

	c = progressConflict(t)
	c.Target = nil
	_, err = f.executor.ExecuteAuto(ctx, c, strategy.ManualReview)
	assert.True(t, errors.IsValidationError(err))
}

func TestExecuteAutoManualReviewRouting(t *testing.T) {
	f := newFixture(t)

	result, err := f.executor.ExecuteAuto(context.Background(), progressConflict(t), strategy.ManualReview)
	require.NoError(t, err)
	assert.True(t, result.Success, "routing to review is a completed execution")
	assert.True(t, result.RequiresReview)
	assert.Nil(t, result.ResolvedData)

	assert.Equal(t, 1, f.collector.Count(events.ManualResolutionRequested))
	assert.Equal(t, 0, f.collector.Count(events.ConflictResolved))

	entries := f.auditLog.ByResolution(result.ResolutionID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionReviewRequested, entries[0].Action)
}

func TestManualReviewAssignsConfiguredReviewer(t *testing.T) {
	logger := logging.NewTestLogger(t)
	bus := events.NewBroker(logger.Logger)
	collector := events.NewCollector()
	bus.Subscribe("*", collector)

	executor := NewExecutor(strategy.NewRegistry(), bus, storage.NewMemoryStore(),
		audit.NewLog(), logger.Logger,
		WithAssigner(func(*conflict.Conflict) string { return "alice" }))

	result, err := executor.ExecuteAuto(context.Background(), progressConflict(t), strategy.ManualReview)
	require.NoError(t, err)
	require.True(t, result.RequiresReview)
	assert.Equal(t, "alice", result.AssignedUser)

	var payload events.ManualReviewPayload
	for _, e := range collector.Events() {
		if e.Topic == events.ManualResolutionRequested {
			payload = e.Data.(events.ManualReviewPayload)
		}
	}
	assert.Equal(t, result.ResolutionID, payload.ResolutionID)
	assert.Equal(t, "alice", payload.AssignedUser)
}

func TestExecuteBestPicksTopRanked(t *testing.T) {
	f := newFixture(t)

	result, err := f.executor.ExecuteBest(context.Background(), progressConflict(t))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, strategy.UseLatestTimestamp, result.StrategyUsed)
}

func TestUndoRestoresPriorState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)
	require.True(t, result.Success)

	undo, err := f.executor.Undo(ctx, result.ResolutionID, "user-7")
	require.NoError(t, err)
	require.True(t, undo.Success)
	assert.NotEqual(t, result.ResolutionID, undo.ResolutionID, "undo appends, never rewrites")
	assert.Equal(t, result.ResolutionID, undo.PriorResolutionID)
	require.NotNil(t, undo.ResolvedData)
	assert.Equal(t, 45.0, undo.ResolvedData.Progress, "pre-resolution state restored")

	// original result is untouched
	original, ok := f.executor.Result(result.ResolutionID)
	require.True(t, ok)
	assert.Equal(t, 75.0, original.ResolvedData.Progress)

	// audited against the original resolution
	entries := f.auditLog.ByResolution(result.ResolutionID)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionUndone, entries[1].Action)
	assert.Equal(t, "user-7", entries[1].Actor)
}

func TestUndoTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)

	_, err = f.executor.Undo(ctx, result.ResolutionID, "user-7")
	require.NoError(t, err)

	_, err = f.executor.Undo(ctx, result.ResolutionID, "user-7")
	assert.True(t, errors.IsValidationError(err))
}

func TestUndoUnknownResolution(t *testing.T) {
	f := newFixture(t)
	_, err := f.executor.Undo(context.Background(), "missing", "user-7")
	assert.True(t, errors.IsNotFound(err))
}

func TestRedoReappliesWithoutRecomputation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)

	_, err = f.executor.Undo(ctx, result.ResolutionID, "user-7")
	require.NoError(t, err)

	redo, err := f.executor.Redo(ctx, result.ResolutionID, "user-7")
	require.NoError(t, err)
	require.NotNil(t, redo.ResolvedData)
	assert.Equal(t, result.ResolvedData, redo.ResolvedData,
		"redo restores exactly what the original execution produced")
	assert.Equal(t, result.ResolutionID, redo.PriorResolutionID)

	entries := f.auditLog.ByResolution(result.ResolutionID)
	require.Len(t, entries, 3)
	assert.Equal(t, audit.ActionRedone, entries[2].Action)
}

func TestRedoWithoutUndoFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)

	_, err = f.executor.Redo(ctx, result.ResolutionID, "user-7")
	assert.True(t, errors.IsValidationError(err))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)

	// undo/redo cycles always land back on the original resolved state
	for i := 0; i < 3; i++ {
		_, err = f.executor.Undo(ctx, result.ResolutionID, "user-7")
		require.NoError(t, err)
		redo, err := f.executor.Redo(ctx, result.ResolutionID, "user-7")
		require.NoError(t, err)
		assert.Equal(t, result.ResolvedData, redo.ResolvedData)
	}
}

func TestStatsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	require.NoError(t, err)
	_, err = f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.ManualReview)
	require.NoError(t, err)

	c := progressConflict(t)
	c.Type = conflict.TitleDifference
	_, err = f.executor.ExecuteAuto(ctx, c, strategy.UseLatestTimestamp)
	require.NoError(t, err)

	stats := f.executor.Stats()
	assert.Equal(t, Stats{Executions: 2, Successes: 1, Failures: 1}, stats[strategy.UseLatestTimestamp])
	assert.Equal(t, Stats{Executions: 1, ReviewRouted: 1}, stats[strategy.ManualReview])
}

func TestExecuteAutoHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.executor.ExecuteAuto(ctx, progressConflict(t), strategy.UseLatestTimestamp)
	assert.True(t, errors.IsCanceled(err))
}
