// Package conflict detects and classifies divergence between two replicas of
// the same reading record. Detection rules are pure; severity is derived
// deterministically from the measured details by configurable thresholds, so
// identical inputs always classify identically.
package conflict

import (
	"time"

	"github.com/shelfsync/shelfsync/pkg/records"
)

// Type classifies why two replicas diverge.
type Type string

// Built-in conflict types. User-registered rules may introduce new types.
const (
	ProgressMismatch  Type = "PROGRESS_MISMATCH"
	TitleDifference   Type = "TITLE_DIFFERENCE"
	TimestampConflict Type = "TIMESTAMP_CONFLICT"
	TagDifference     Type = "TAG_DIFFERENCE"
	MultipleConflicts Type = "MULTIPLE_CONFLICTS"
)

// Severity is the coarse urgency classification of a conflict.
type Severity string

// Severity levels, ordered LOW < MEDIUM < HIGH.
const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// weight orders severities for max comparisons.
func (s Severity) weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.weight() >= other.weight()
}

// MaxSeverity returns the most severe of the given severities.
func MaxSeverity(severities ...Severity) Severity {
	max := SeverityLow
	for _, s := range severities {
		if s.weight() > max.weight() {
			max = s
		}
	}
	return max
}

// Details carries the measured divergence a conflict was classified from.
// Each detection rule fills only the fields it measures; for
// MULTIPLE_CONFLICTS the fields of all constituent rules are combined and
// Constituents lists the concurrent divergence types.
type Details struct {
	ProgressDiff    float64       `json:"progress_diff,omitempty"`
	TitleSimilarity float64       `json:"title_similarity,omitempty"`
	TimestampDelta  time.Duration `json:"timestamp_delta,omitempty"`
	TagDiffRatio    float64       `json:"tag_diff_ratio,omitempty"`
	Constituents    []Type        `json:"constituents,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// merge folds another rule's details into d for a MULTIPLE_CONFLICTS entity.
func (d *Details) merge(other Details) {
	if other.ProgressDiff != 0 {
		d.ProgressDiff = other.ProgressDiff
	}
	if other.TitleSimilarity != 0 {
		d.TitleSimilarity = other.TitleSimilarity
	}
	if other.TimestampDelta != 0 {
		d.TimestampDelta = other.TimestampDelta
	}
	if other.TagDiffRatio != 0 {
		d.TagDiffRatio = other.TagDiffRatio
	}
	for k, v := range other.Extra {
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = v
	}
}

// Conflict is a detected divergence between two replicas of one record.
type Conflict struct {
	Type       Type            `json:"type"`
	BookID     string          `json:"book_id"`
	Source     *records.Record `json:"source"`
	Target     *records.Record `json:"target"`
	Details    Details         `json:"details"`
	Severity   Severity        `json:"severity"`
	Confidence float64         `json:"confidence,omitempty"`
}

// Is reports whether the conflict is of the given type, directly or as one
// of the constituents of a MULTIPLE_CONFLICTS entity.
func (c *Conflict) Is(t Type) bool {
	if c.Type == t {
		return true
	}
	if c.Type == MultipleConflicts {
		for _, ct := range c.Details.Constituents {
			if ct == t {
				return true
			}
		}
	}
	return false
}

// Pair is one unit of detection input: two replicas of the same record,
// optionally with a declared conflict type restricting which rules run.
type Pair struct {
	Source *records.Record `json:"source" yaml:"source"`
	Target *records.Record `json:"target" yaml:"target"`
	Hint   Type            `json:"type,omitempty" yaml:"type,omitempty"`
}
