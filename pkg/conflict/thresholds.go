package conflict

import "time"

// Default detection thresholds. Exact cutoffs are configuration, not
// invariants; these defaults are what the engine ships with.
const (
	DefaultProgressThreshold        = 10.0
	DefaultTitleSimilarityThreshold = 0.8
	DefaultTimestampThreshold       = 24 * time.Hour
	DefaultTagDifferenceThreshold   = 0.25
)

// Thresholds configures when rules fire and how measured divergence maps to
// severity. Severity is a pure function of details under a fixed Thresholds
// value.
type Thresholds struct {
	// ProgressThreshold is the progress delta below which a progress
	// mismatch is LOW severity. Deltas beyond five times the threshold
	// are HIGH. Default 10 (LOW <10, MEDIUM 10-50, HIGH >50).
	ProgressThreshold float64 `json:"progress_threshold" yaml:"progress_threshold"`

	// TitleSimilarityThreshold is the similarity at or above which two
	// titles are considered the same. Default 0.8.
	TitleSimilarityThreshold float64 `json:"title_similarity_threshold" yaml:"title_similarity_threshold"`

	// TimestampThreshold is the update-time drift beyond which replicas
	// are in timestamp conflict. Default 24h.
	TimestampThreshold time.Duration `json:"timestamp_threshold" yaml:"timestamp_threshold"`

	// TagDifferenceThreshold is the tag-set difference ratio below which
	// a tag divergence is LOW severity. Ratios beyond twice the threshold
	// are HIGH. Default 0.25 (LOW <0.25, MEDIUM 0.25-0.5, HIGH >0.5).
	TagDifferenceThreshold float64 `json:"tag_difference_threshold" yaml:"tag_difference_threshold"`
}

// DefaultThresholds returns the engine's default detection thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ProgressThreshold:        DefaultProgressThreshold,
		TitleSimilarityThreshold: DefaultTitleSimilarityThreshold,
		TimestampThreshold:       DefaultTimestampThreshold,
		TagDifferenceThreshold:   DefaultTagDifferenceThreshold,
	}
}

// progressSeverity maps a progress delta to a severity.
func (t Thresholds) progressSeverity(delta float64) Severity {
	switch {
	case delta < t.ProgressThreshold:
		return SeverityLow
	case delta <= t.ProgressThreshold*5:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// titleSeverity maps a title similarity score to a severity. Similarity at
// or above the threshold does not fire at all; just below it is LOW, and
// the further below, the more severe.
func (t Thresholds) titleSeverity(similarity float64) Severity {
	switch {
	case similarity < t.TitleSimilarityThreshold-0.3:
		return SeverityHigh
	case similarity < t.TitleSimilarityThreshold-0.1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// timestampSeverity maps an update-time drift to a severity.
func (t Thresholds) timestampSeverity(delta time.Duration) Severity {
	switch {
	case delta <= 3*t.TimestampThreshold:
		return SeverityLow
	case delta <= 7*t.TimestampThreshold:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// tagSeverity maps a tag-set difference ratio to a severity.
func (t Thresholds) tagSeverity(ratio float64) Severity {
	switch {
	case ratio < t.TagDifferenceThreshold:
		return SeverityLow
	case ratio <= t.TagDifferenceThreshold*2:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// SeverityFor recomputes the severity for a conflict type from its details.
// For MULTIPLE_CONFLICTS it is the maximum of the constituent severities.
func (t Thresholds) SeverityFor(conflictType Type, details Details) Severity {
	switch conflictType {
	case ProgressMismatch:
		return t.progressSeverity(details.ProgressDiff)
	case TitleDifference:
		return t.titleSeverity(details.TitleSimilarity)
	case TimestampConflict:
		return t.timestampSeverity(details.TimestampDelta)
	case TagDifference:
		return t.tagSeverity(details.TagDiffRatio)
	case MultipleConflicts:
		severities := make([]Severity, 0, len(details.Constituents))
		for _, ct := range details.Constituents {
			severities = append(severities, t.SeverityFor(ct, details))
		}
		return MaxSeverity(severities...)
	default:
		return SeverityMedium
	}
}
