package strategy

import (
	"fmt"
	"time"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/similarity"
)

// DefaultPlatformPriority is the source-priority order the engine ships
// with: reading on an e-reader is usually the authoritative copy, the web
// reader the least trusted.
var DefaultPlatformPriority = []records.Platform{
	records.PlatformEReader,
	records.PlatformMobile,
	records.PlatformDesktop,
	records.PlatformWeb,
}

// latestTimestampStrategy resolves by taking whichever replica was updated
// most recently. High confidence for timestamp-bearing divergences; a pure
// title conflict carries no recency signal, so the strategy refuses it.
type latestTimestampStrategy struct {
	baseStrategy
}

func newLatestTimestampStrategy() Strategy {
	return &latestTimestampStrategy{baseStrategy{
		id:          UseLatestTimestamp,
		description: "Keeps the most recently updated replica",
	}}
}

func (s *latestTimestampStrategy) Applicable(c *conflict.Conflict) bool {
	if c == nil || c.Source == nil || c.Target == nil {
		return false
	}
	if c.Type == conflict.TitleDifference {
		return false
	}
	if c.Source.LastUpdated.IsZero() || c.Target.LastUpdated.IsZero() {
		return false
	}
	return !c.Source.LastUpdated.Equal(c.Target.LastUpdated)
}

func (s *latestTimestampStrategy) Confidence(c *conflict.Conflict) float64 {
	delta := similarity.TimestampDelta(c.Source.LastUpdated, c.Target.LastUpdated)
	switch {
	case delta > 24*time.Hour:
		return 0.95
	case delta > time.Hour:
		return 0.9
	default:
		return 0.85
	}
}

func (s *latestTimestampStrategy) Execute(c *conflict.Conflict) (*Outcome, error) {
	winner := c.Source
	if c.Target.LastUpdated.After(c.Source.LastUpdated) {
		winner = c.Target
	}
	return &Outcome{
		Record: winner.Clone(),
		Notes:  fmt.Sprintf("kept replica updated at %s", winner.LastUpdated.Format(time.RFC3339)),
	}, nil
}

// sourcePriorityStrategy resolves by a fixed platform priority order.
type sourcePriorityStrategy struct {
	baseStrategy
	priority []records.Platform
}

func newSourcePriorityStrategy(priority []records.Platform) Strategy {
	return &sourcePriorityStrategy{
		baseStrategy: baseStrategy{
			id:          UseSourcePriority,
			description: fmt.Sprintf("Keeps the replica from the highest-priority platform: %v", priority),
		},
		priority: priority,
	}
}

// rank returns the platform's position in the priority order, or -1.
func (s *sourcePriorityStrategy) rank(p records.Platform) int {
	for i, known := range s.priority {
		if known == p {
			return i
		}
	}
	return -1
}

func (s *sourcePriorityStrategy) Applicable(c *conflict.Conflict) bool {
	return c != nil && c.Source != nil && c.Target != nil
}

func (s *sourcePriorityStrategy) Confidence(c *conflict.Conflict) float64 {
	srcRank := s.rank(c.Source.Platform)
	tgtRank := s.rank(c.Target.Platform)
	if srcRank != tgtRank && (srcRank >= 0 || tgtRank >= 0) {
		return 0.75
	}
	// Nothing in the priority order distinguishes the replicas.
	return 0.6
}

func (s *sourcePriorityStrategy) Execute(c *conflict.Conflict) (*Outcome, error) {
	srcRank := s.rank(c.Source.Platform)
	tgtRank := s.rank(c.Target.Platform)

	winner := c.Source
	reason := "source replica wins by default"
	switch {
	case srcRank >= 0 && (tgtRank < 0 || srcRank < tgtRank):
		reason = fmt.Sprintf("platform %s outranks %s", c.Source.Platform, c.Target.Platform)
	case tgtRank >= 0 && (srcRank < 0 || tgtRank < srcRank):
		winner = c.Target
		reason = fmt.Sprintf("platform %s outranks %s", c.Target.Platform, c.Source.Platform)
	}
	return &Outcome{Record: winner.Clone(), Notes: reason}, nil
}

// manualReviewStrategy is the always-applicable fallback: it produces no
// data itself, it routes the conflict to a human.
type manualReviewStrategy struct {
	baseStrategy
}

func newManualReviewStrategy() Strategy {
	return &manualReviewStrategy{baseStrategy{
		id:          ManualReview,
		description: "Routes the conflict to a human reviewer",
	}}
}

func (s *manualReviewStrategy) Applicable(*conflict.Conflict) bool { return true }

// Confidence stays below 0.7 so manual review is the floor, never the
// preferred choice when an automatic strategy is confident.
func (s *manualReviewStrategy) Confidence(c *conflict.Conflict) float64 {
	if c != nil && c.Severity == conflict.SeverityHigh {
		return 0.65
	}
	return 0.5
}

func (s *manualReviewStrategy) Execute(c *conflict.Conflict) (*Outcome, error) {
	return &Outcome{
		RequiresReview: true,
		Notes:          fmt.Sprintf("%s conflict for book %s needs a human decision", c.Type, c.BookID),
	}, nil
}

// intelligentMergeStrategy merges field by field: progress takes the
// furthest read position, tags take the union, the title prefers the more
// complete string when the two are recognizably the same work.
type intelligentMergeStrategy struct {
	baseStrategy
	titleSimilarityThreshold float64
}

func newIntelligentMergeStrategy(titleSimilarityThreshold float64) Strategy {
	return &intelligentMergeStrategy{
		baseStrategy: baseStrategy{
			id:          IntelligentMerge,
			description: "Merges replicas field by field",
		},
		titleSimilarityThreshold: titleSimilarityThreshold,
	}
}

func (s *intelligentMergeStrategy) Applicable(c *conflict.Conflict) bool {
	return c != nil && c.Source != nil && c.Target != nil
}

// titlesMergeable reports whether the two titles are close enough to merge
// automatically. Missing titles merge trivially.
func (s *intelligentMergeStrategy) titlesMergeable(c *conflict.Conflict) bool {
	if c.Source.Title == "" || c.Target.Title == "" {
		return true
	}
	return similarity.StringSimilarity(c.Source.Title, c.Target.Title) >= s.titleSimilarityThreshold
}

func (s *intelligentMergeStrategy) Confidence(c *conflict.Conflict) float64 {
	if s.titlesMergeable(c) {
		return 0.8
	}
	return 0.6
}

func (s *intelligentMergeStrategy) Execute(c *conflict.Conflict) (*Outcome, error) {
	merged := c.Source.Clone()
	if merged == nil {
		return nil, errors.NewValidationError("source", nil, "cannot merge nil source")
	}

	if c.Target.Progress > merged.Progress {
		merged.Progress = c.Target.Progress
	}

	merged.Tags = similarity.TagUnion(c.Source.Tags, c.Target.Tags)

	if c.Target.LastUpdated.After(merged.LastUpdated) {
		merged.LastUpdated = c.Target.LastUpdated
		merged.Platform = c.Target.Platform
	}

	if s.titlesMergeable(c) {
		if len(c.Target.Title) > len(merged.Title) {
			merged.Title = c.Target.Title
		}
		return &Outcome{Record: merged, Notes: "merged progress, tags, and title"}, nil
	}

	// Titles disagree about what book this is; a human settles that while
	// the mechanical fields stay merged.
	return &Outcome{
		Record:         merged,
		RequiresReview: true,
		Notes:          "titles too dissimilar to merge automatically",
	}, nil
}
