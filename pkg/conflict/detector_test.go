package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/logging"
	"github.com/shelfsync/shelfsync/pkg/records"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T) (*Detector, *events.Collector) {
	t.Helper()
	tl := logging.NewTestLogger(t)
	bus := events.NewBroker(tl.Logger)
	col := events.NewCollector()
	bus.Subscribe("conflict.detected", col)
	return NewDetector(DefaultThresholds(), bus, tl.Logger), col
}

func record(bookID string, progress float64, updated time.Time) *records.Record {
	return &records.Record{
		BookID:      bookID,
		Title:       "The Three-Body Problem",
		Progress:    progress,
		LastUpdated: updated,
	}
}

func TestDetectProgressMismatch(t *testing.T) {
	d, col := newTestDetector(t)

	// Source read further and more recently than target.
	pairs := []Pair{{
		Source: record("bk-1", 75, baseTime),
		Target: record("bk-1", 45, baseTime.Add(-time.Hour)),
	}}

	conflicts, err := d.Detect(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, ProgressMismatch, c.Type)
	assert.Equal(t, "bk-1", c.BookID)
	assert.Equal(t, 30.0, c.Details.ProgressDiff)
	assert.Equal(t, SeverityMedium, c.Severity)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)

	// Exactly one detection-completed notification.
	require.Equal(t, 1, col.Count(events.ConflictDetected))
	payload := col.Events()[0].Data.(events.DetectedPayload)
	assert.Equal(t, 1, payload.PairCount)
	assert.Equal(t, 1, payload.ConflictCount)
}

func TestDetectTitleDifference(t *testing.T) {
	d, _ := newTestDetector(t)

	source := record("bk-2", 50, baseTime)
	target := record("bk-2", 50, baseTime)
	source.Title = "The Three-Body Problem"
	target.Title = "Remembrance of Earth's Past"

	conflicts, err := d.Detect(context.Background(), []Pair{{Source: source, Target: target}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, TitleDifference, conflicts[0].Type)
	assert.Less(t, conflicts[0].Details.TitleSimilarity, DefaultTitleSimilarityThreshold)
}

func TestDetectNoConflict(t *testing.T) {
	d, col := newTestDetector(t)

	pairs := []Pair{{
		Source: record("bk-3", 40, baseTime),
		Target: record("bk-3", 40, baseTime),
	}}

	conflicts, err := d.Detect(context.Background(), pairs)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, 1, col.Count(events.ConflictDetected))
}

func TestDetectMultipleConflicts(t *testing.T) {
	d, _ := newTestDetector(t)

	source := record("bk-4", 90, baseTime)
	target := record("bk-4", 20, baseTime)
	source.Tags = []string{"sci-fi"}
	target.Tags = []string{"fantasy"}

	conflicts, err := d.Detect(context.Background(), []Pair{{Source: source, Target: target}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, MultipleConflicts, c.Type)
	assert.ElementsMatch(t, []Type{ProgressMismatch, TagDifference}, c.Details.Constituents)
	// progress delta 70 -> HIGH dominates tag HIGH/MEDIUM
	assert.Equal(t, SeverityHigh, c.Severity)
	// two concurrent divergences halve the base confidence
	assert.InDelta(t, 0.3, c.Confidence, 1e-9)
	assert.True(t, c.Is(ProgressMismatch))
	assert.True(t, c.Is(TagDifference))
	assert.False(t, c.Is(TitleDifference))
}

func TestDetectHintRestrictsRules(t *testing.T) {
	d, _ := newTestDetector(t)

	source := record("bk-5", 90, baseTime)
	target := record("bk-5", 20, baseTime)
	source.Tags = []string{"sci-fi"}
	target.Tags = []string{"fantasy"}

	conflicts, err := d.Detect(context.Background(), []Pair{{
		Source: source, Target: target, Hint: ProgressMismatch,
	}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ProgressMismatch, conflicts[0].Type)
}

func TestDetectValidationFailsWholeCall(t *testing.T) {
	d, col := newTestDetector(t)

	tests := []struct {
		name  string
		pairs []Pair
	}{
		{"nil source", []Pair{{Source: nil, Target: record("bk-6", 10, baseTime)}}},
		{"nil target", []Pair{{Source: record("bk-6", 10, baseTime), Target: nil}}},
		{"missing book id", []Pair{{Source: record("", 10, baseTime), Target: record("", 10, baseTime)}}},
		{"mismatched book ids", []Pair{{Source: record("bk-6", 10, baseTime), Target: record("bk-7", 10, baseTime)}}},
		{"one bad among good", []Pair{
			{Source: record("bk-6", 10, baseTime), Target: record("bk-6", 20, baseTime)},
			{Source: record("", 10, baseTime), Target: record("", 10, baseTime)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts, err := d.Detect(context.Background(), tt.pairs)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
			assert.Nil(t, conflicts)
		})
	}

	// no detection-completed events for failed calls
	assert.Equal(t, 0, col.Count(events.ConflictDetected))
}

func TestDetectDeterminism(t *testing.T) {
	d, _ := newTestDetector(t)

	pair := Pair{
		Source: record("bk-8", 75, baseTime),
		Target: record("bk-8", 45, baseTime.Add(-time.Hour)),
	}

	first, err := d.Detect(context.Background(), []Pair{pair})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.Detect(context.Background(), []Pair{pair})
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, first[0].Type, again[0].Type)
		assert.Equal(t, first[0].Severity, again[0].Severity)
		assert.Equal(t, first[0].Details, again[0].Details)
	}
}

func TestSeverityRecomputable(t *testing.T) {
	th := DefaultThresholds()

	details := Details{ProgressDiff: 30}
	s1 := th.SeverityFor(ProgressMismatch, details)
	s2 := th.SeverityFor(ProgressMismatch, details)
	assert.Equal(t, s1, s2)
	assert.Equal(t, SeverityMedium, s1)

	assert.Equal(t, SeverityLow, th.SeverityFor(ProgressMismatch, Details{ProgressDiff: 5}))
	assert.Equal(t, SeverityHigh, th.SeverityFor(ProgressMismatch, Details{ProgressDiff: 70}))

	assert.Equal(t, SeverityMedium, th.SeverityFor(TitleDifference, Details{TitleSimilarity: 0.65}))
	assert.Equal(t, SeverityHigh, th.SeverityFor(TitleDifference, Details{TitleSimilarity: 0.3}))

	assert.Equal(t, SeverityHigh, th.SeverityFor(TagDifference, Details{TagDiffRatio: 0.8}))
}

func TestRegisterCustomRule(t *testing.T) {
	d, _ := newTestDetector(t)

	const platformDrift Type = "PLATFORM_DRIFT"
	err := d.RegisterRule(RuleFunc{
		ConflictType: platformDrift,
		DetectFunc: func(source, target *records.Record, _ Thresholds) (Details, bool) {
			if source.Platform != target.Platform {
				return Details{Extra: map[string]any{"platforms": []string{string(source.Platform), string(target.Platform)}}}, true
			}
			return Details{}, false
		},
	})
	require.NoError(t, err)

	source := record("bk-9", 50, baseTime)
	target := record("bk-9", 50, baseTime)
	source.Platform = records.PlatformMobile
	target.Platform = records.PlatformEReader

	conflicts, err := d.Detect(context.Background(), []Pair{{Source: source, Target: target}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, platformDrift, conflicts[0].Type)

	require.Error(t, d.RegisterRule(nil))
}
