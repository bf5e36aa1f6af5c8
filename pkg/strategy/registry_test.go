package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/records"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

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

func titleConflict(t *testing.T) *conflict.Conflict {
	t.Helper()
	return &conflict.Conflict{
		Type:   conflict.TitleDifference,
		BookID: "bk-2",
		Source: &records.Record{
			BookID: "bk-2", Title: "The Three-Body Problem", Progress: 50, LastUpdated: baseTime,
		},
		Target: &records.Record{
			BookID: "bk-2", Title: "Remembrance of Earth's Past", Progress: 50, LastUpdated: baseTime.Add(-2 * time.Hour),
		},
		Details:  conflict.Details{TitleSimilarity: 0.2},
		Severity: conflict.SeverityHigh,
	}
}

func TestRegistryPreRegistersBuiltins(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, 4, r.Len())

	for _, id := range []ID{UseLatestTimestamp, UseSourcePriority, ManualReview, IntelligentMerge} {
		_, ok := r.Get(id)
		assert.True(t, ok, "expected built-in %s", id)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	err := r.Register(newManualReviewStrategy())
	require.ErrorIs(t, err, errors.ErrAlreadyExists)

	require.Error(t, r.Register(nil))
}

func TestRecommendationsOrdering(t *testing.T) {
	r := NewRegistry()
	recs := r.Recommendations(progressConflict(t))
	require.NotEmpty(t, recs)

	// non-increasing confidence
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Confidence, recs[i].Confidence)
	}

	// latest-timestamp leads for a timestamp-bearing divergence, above 0.8
	assert.Equal(t, UseLatestTimestamp, recs[0].Strategy)
	assert.Greater(t, recs[0].Confidence, 0.8)
	assert.NotEmpty(t, recs[0].Reason)
}

func TestLatestTimestampInapplicableToTitleConflicts(t *testing.T) {
	r := NewRegistry()
	recs := r.Recommendations(titleConflict(t))
	for _, rec := range recs {
		assert.NotEqual(t, UseLatestTimestamp, rec.Strategy,
			"timestamp strategy must not be recommended for a pure title conflict")
	}
}

func TestManualReviewAlwaysApplicable(t *testing.T) {
	r := NewRegistry()

	for _, c := range []*conflict.Conflict{progressConflict(t), titleConflict(t)} {
		recs := r.Recommendations(c)
		found := false
		for _, rec := range recs {
			if rec.Strategy == ManualReview {
				found = true
				assert.Less(t, rec.Confidence, 0.7, "manual review stays below the auto-resolution band")
			}
		}
		assert.True(t, found, "manual review missing for %s", c.Type)
	}
}

func TestBestSelectsHead(t *testing.T) {
	r := NewRegistry()
	best, err := r.Best(progressConflict(t))
	require.NoError(t, err)
	assert.Equal(t, UseLatestTimestamp, best.ID())
}

func TestTieBreakByRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	// Two custom strategies with identical confidence: the one registered
	// first must rank first.
	require.NoError(t, r.Register(constantStrategy{id: "custom-a", confidence: 0.99}))
	require.NoError(t, r.Register(constantStrategy{id: "custom-b", confidence: 0.99}))

	recs := r.Recommendations(progressConflict(t))
	require.GreaterOrEqual(t, len(recs), 2)
	assert.Equal(t, ID("custom-a"), recs[0].Strategy)
	assert.Equal(t, ID("custom-b"), recs[1].Strategy)
}

func TestLatestTimestampExecute(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Get(UseLatestTimestamp)
	require.True(t, ok)

	c := progressConflict(t)
	require.True(t, s.Applicable(c))

	out, err := s.Execute(c)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, 75.0, out.Record.Progress, "the newer replica read further")
	assert.False(t, out.RequiresReview)
}

func TestIntelligentMergeExecute(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Get(IntelligentMerge)
	require.True(t, ok)

	c := progressConflict(t)
	c.Source.Tags = []string{"sci-fi"}
	c.Target.Tags = []string{"favorites"}
	c.Target.Progress = 80 // target read further this time

	out, err := s.Execute(c)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, 80.0, out.Record.Progress)
	assert.ElementsMatch(t, []string{"sci-fi", "favorites"}, out.Record.Tags)
	assert.False(t, out.RequiresReview)
}

func TestIntelligentMergeFlagsDissimilarTitles(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Get(IntelligentMerge)
	require.True(t, ok)

	out, err := s.Execute(titleConflict(t))
	require.NoError(t, err)
	assert.True(t, out.RequiresReview)
	require.NotNil(t, out.Record)
}

func TestSourcePriorityExecute(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Get(UseSourcePriority)
	require.True(t, ok)

	c := progressConflict(t)
	c.Source.Platform = records.PlatformWeb
	c.Target.Platform = records.PlatformEReader

	out, err := s.Execute(c)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, records.PlatformEReader, out.Record.Platform, "e-reader outranks web by default")
}

func TestManualReviewExecute(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Get(ManualReview)
	require.True(t, ok)

	out, err := s.Execute(progressConflict(t))
	require.NoError(t, err)
	assert.True(t, out.RequiresReview)
	assert.Nil(t, out.Record)
}

// constantStrategy is a test strategy with a fixed confidence.
type constantStrategy struct {
	id         ID
	confidence float64
}

func (s constantStrategy) ID() ID                                  { return s.id }
func (s constantStrategy) Description() string                     { return "test strategy" }
func (s constantStrategy) Applicable(*conflict.Conflict) bool      { return true }
func (s constantStrategy) Confidence(*conflict.Conflict) float64   { return s.confidence }
func (s constantStrategy) Execute(c *conflict.Conflict) (*Outcome, error) {
	return &Outcome{Record: c.Source.Clone()}, nil
}
