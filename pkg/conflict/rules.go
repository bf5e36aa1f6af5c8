package conflict

import (
	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/similarity"
)

// Rule is a pure detection rule: given two replicas it either measures a
// divergence of its type or reports nothing. Rules must not mutate their
// inputs or keep state between calls.
type Rule interface {
	// Type is the conflict type this rule detects.
	Type() Type

	// Detect measures the divergence between source and target. The
	// second return value is false when the rule finds no conflict.
	Detect(source, target *records.Record, thresholds Thresholds) (Details, bool)
}

// builtinRules returns the engine's built-in detection rules, in the order
// they run.
func builtinRules() []Rule {
	return []Rule{
		progressRule{},
		titleRule{},
		timestampRule{},
		tagRule{},
	}
}

// progressRule fires on any reading-progress mismatch.
type progressRule struct{}

func (progressRule) Type() Type { return ProgressMismatch }

func (progressRule) Detect(source, target *records.Record, _ Thresholds) (Details, bool) {
	delta := similarity.ProgressDelta(source.Progress, target.Progress)
	if delta == 0 {
		return Details{}, false
	}
	return Details{ProgressDiff: delta}, true
}

// titleRule fires when both titles are present and their similarity falls
// below the configured threshold.
type titleRule struct{}

func (titleRule) Type() Type { return TitleDifference }

func (titleRule) Detect(source, target *records.Record, th Thresholds) (Details, bool) {
	if source.Title == "" || target.Title == "" {
		return Details{}, false
	}
	sim := similarity.StringSimilarity(source.Title, target.Title)
	if sim >= th.TitleSimilarityThreshold {
		return Details{}, false
	}
	return Details{TitleSimilarity: sim}, true
}

// timestampRule fires when the replicas' update times drifted further apart
// than the configured threshold.
type timestampRule struct{}

func (timestampRule) Type() Type { return TimestampConflict }

func (timestampRule) Detect(source, target *records.Record, th Thresholds) (Details, bool) {
	if source.LastUpdated.IsZero() || target.LastUpdated.IsZero() {
		return Details{}, false
	}
	delta := similarity.TimestampDelta(source.LastUpdated, target.LastUpdated)
	if delta <= th.TimestampThreshold {
		return Details{}, false
	}
	return Details{TimestampDelta: delta}, true
}

// tagRule fires on any tag-set difference.
type tagRule struct{}

func (tagRule) Type() Type { return TagDifference }

func (tagRule) Detect(source, target *records.Record, _ Thresholds) (Details, bool) {
	ratio := similarity.TagDifferenceRatio(source.Tags, target.Tags)
	if ratio == 0 {
		return Details{}, false
	}
	return Details{TagDiffRatio: ratio}, true
}

// RuleFunc adapts a function to the Rule interface for custom registration.
type RuleFunc struct {
	ConflictType Type
	DetectFunc   func(source, target *records.Record, thresholds Thresholds) (Details, bool)
}

// Type implements Rule.
func (r RuleFunc) Type() Type { return r.ConflictType }

// Detect implements Rule.
func (r RuleFunc) Detect(source, target *records.Record, th Thresholds) (Details, bool) {
	return r.DetectFunc(source, target, th)
}
