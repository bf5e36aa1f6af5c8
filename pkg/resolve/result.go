// Package resolve executes resolution strategies against conflicts and
// retains what it did, so any resolution can be undone or redone without
// recomputation. Results are immutable once created; undo and redo append
// new results referencing prior ones rather than rewriting history.
package resolve

import (
	"time"

	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// Result is the outcome of running one strategy against one conflict.
//
// Success means the strategy executed: either resolved data was produced or
// the conflict was routed to manual review (RequiresReview). A false
// Success always carries Error with the offending book's ID in it.
type Result struct {
	ResolutionID string          `json:"resolution_id"`
	BookID       string          `json:"book_id"`
	Success      bool            `json:"success"`
	ResolvedData *records.Record `json:"resolved_data,omitempty"`

	// RequiresReview is set when the strategy routed the conflict to a
	// human instead of producing final data; AssignedUser names the
	// reviewer it was handed to, when the executor has an assigner.
	RequiresReview bool   `json:"requires_review,omitempty"`
	AssignedUser   string `json:"assigned_user,omitempty"`

	StrategyUsed strategy.ID `json:"strategy_used"`
	Error        string      `json:"error,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`

	// PriorResolutionID references the resolution this result was derived
	// from; set on results created by undo and redo.
	PriorResolutionID string `json:"prior_resolution_id,omitempty"`
}

// Stats aggregates per-strategy execution counters. Updated under the
// executor's lock; a multi-threaded caller reads a consistent snapshot.
type Stats struct {
	Executions   int `json:"executions"`
	Successes    int `json:"successes"`
	Failures     int `json:"failures"`
	ReviewRouted int `json:"review_routed"`
}
