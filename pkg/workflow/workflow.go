// Package workflow manages the human side of resolution: review queues for
// conflicts automation would not settle, escalation when reviews stall, and
// the feedback loop that teaches the engine which strategies users trust.
package workflow

import (
	"time"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/records"
)

// State is a review workflow's lifecycle state.
type State string

// Workflow states. APPROVED and REJECTED are terminal; an escalated review
// stays open until its higher-authority reviewer decides.
const (
	StatePendingReview State = "PENDING_REVIEW"
	StateApproved      State = "APPROVED"
	StateRejected      State = "REJECTED"
	StateEscalated     State = "ESCALATED"
)

// Action is a transition request against a workflow.
type Action string

// Workflow actions.
const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionEscalate Action = "escalate"
)

// transitions is the legal state machine. Terminal states allow nothing;
// an action missing here fails with a transition error.
var transitions = map[State]map[Action]State{
	StatePendingReview: {
		ActionApprove:  StateApproved,
		ActionReject:   StateRejected,
		ActionEscalate: StateEscalated,
	},
	// An escalated review is decided by its escalation target; it cannot
	// be escalated again.
	StateEscalated: {
		ActionApprove: StateApproved,
		ActionReject:  StateRejected,
	},
}

// Workflow is one conflict awaiting, or having finished, human review.
type Workflow struct {
	ID           string            `json:"id"`
	ResolutionID string            `json:"resolution_id"`
	BookID       string            `json:"book_id"`
	ConflictType conflict.Type     `json:"conflict_type"`
	Severity     conflict.Severity `json:"severity"`
	State        State             `json:"state"`

	// Proposed is the resolution data suggested for the reviewer, when a
	// strategy produced one before routing to review.
	Proposed *records.Record `json:"proposed,omitempty"`

	AssignedUser string    `json:"assigned_user,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the workflow has reached a final state.
func (w *Workflow) Terminal() bool {
	return w.State == StateApproved || w.State == StateRejected
}

// EscalationRule maps a severity band and review age to an escalation
// target. The first matching rule wins.
type EscalationRule struct {
	// MinSeverity is the lowest severity the rule applies to.
	MinSeverity conflict.Severity `json:"min_severity"`

	// Timeout is how long a review may stay pending before the sweep
	// escalates it. Zero disables time-based escalation for the rule.
	Timeout time.Duration `json:"timeout"`

	TargetRole     string `json:"target_role"`
	Urgency        string `json:"urgency"`
	BusinessImpact string `json:"business_impact,omitempty"`
}

// DefaultEscalationRules is the rule set the engine ships with: severe
// conflicts go to a librarian quickly, everything else to support after a
// day of silence.
var DefaultEscalationRules = []EscalationRule{
	{
		MinSeverity:    conflict.SeverityHigh,
		Timeout:        4 * time.Hour,
		TargetRole:     "librarian",
		Urgency:        "high",
		BusinessImpact: "reading position may regress on the user's primary device",
	},
	{
		MinSeverity: conflict.SeverityLow,
		Timeout:     24 * time.Hour,
		TargetRole:  "support",
		Urgency:     "normal",
	},
}

// match returns the first rule applying to the given severity.
func matchRule(rules []EscalationRule, severity conflict.Severity) (EscalationRule, bool) {
	for _, rule := range rules {
		if severity.AtLeast(rule.MinSeverity) {
			return rule, true
		}
	}
	return EscalationRule{}, false
}
