// Package strategy holds the catalog of resolution strategies and the
// selection algorithm that ranks them per conflict. Strategies are plain
// interface implementations registered into an ordered lookup table at
// startup; there is no reflection-based dispatch.
package strategy

import (
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/records"
)

// ID names a registered resolution strategy.
type ID string

// Built-in strategy IDs.
const (
	UseLatestTimestamp ID = "use-latest-timestamp"
	UseSourcePriority  ID = "use-source-priority"
	ManualReview       ID = "manual-review"
	IntelligentMerge   ID = "intelligent-merge"
)

// String returns the string representation of a strategy ID.
func (id ID) String() string {
	return string(id)
}

// Outcome is what executing a strategy produces: either resolved record
// data, or a flag routing the conflict to manual review.
type Outcome struct {
	// Record is the resolved record data. Nil when the conflict was
	// routed to manual review instead.
	Record *records.Record

	// RequiresReview marks the conflict as needing a human decision.
	RequiresReview bool

	// Notes is a human-readable account of what the strategy did.
	Notes string
}

// Strategy is a named, pluggable resolution algorithm.
//
// Applicable must be consulted before Execute: executing a strategy against
// a conflict it is not applicable to is a reported failure, never a silent
// no-op. Confidence is the strategy's self-assessed likelihood of being the
// correct resolution, in [0,1].
type Strategy interface {
	// ID returns the strategy's registered name.
	ID() ID

	// Description returns a human-readable description.
	Description() string

	// Applicable reports whether the strategy can resolve this conflict.
	Applicable(c *conflict.Conflict) bool

	// Confidence scores how likely the strategy is to resolve this
	// conflict correctly, in [0,1].
	Confidence(c *conflict.Conflict) float64

	// Execute resolves the conflict. Callers check Applicable first.
	Execute(c *conflict.Conflict) (*Outcome, error)
}

// baseStrategy provides the common identity plumbing.
type baseStrategy struct {
	id          ID
	description string
}

// ID returns the strategy's registered name.
func (s *baseStrategy) ID() ID { return s.id }

// Description returns a human-readable description.
func (s *baseStrategy) Description() string { return s.description }

// Recommendation pairs a strategy with its confidence for one conflict.
type Recommendation struct {
	Strategy   ID      `json:"strategy"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
