// Package events provides the publish-subscribe surface the engine announces
// its lifecycle on. Topics are typed constants; subscribers match topics with
// explicit glob rules ("conflict.batch.*", "*") rather than string magic.
//
// Delivery is synchronous fan-out at publish time: the engine is single-flow
// cooperative, and subscribers are expected not to block.
package events

import "time"

// Topic identifies a class of engine events.
type Topic string

// Inbound topics the engine consumes.
const (
	// InboundConflictDetected carries conflicts discovered by the sync
	// transport, triggering detection and processing.
	InboundConflictDetected Topic = "sync.conflict.detected"

	// InboundResolutionRequested triggers a single auto-resolution.
	InboundResolutionRequested Topic = "conflict.resolution.requested"

	// InboundBatchRequested triggers a batch resolution.
	InboundBatchRequested Topic = "conflict.batch.process.requested"
)

// Outbound topics the engine publishes.
const (
	ConflictDetected          Topic = "conflict.detected"
	ConflictResolved          Topic = "conflict.resolved"
	BatchProgress             Topic = "conflict.batch.progress"
	BatchSubBatchCompleted    Topic = "conflict.batch.sub_batch.completed"
	BatchCompleted            Topic = "conflict.batch.completed"
	BatchCancelled            Topic = "conflict.batch.cancelled"
	ConflictEscalated         Topic = "conflict.escalated"
	ManualResolutionRequested Topic = "conflict.manual_resolution.requested"
)

// Event is a single published event with its topic, timestamp, and payload.
type Event struct {
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Payload types for the engine's outbound events.

// DetectedPayload announces completed detection.
type DetectedPayload struct {
	PairCount     int `json:"pair_count"`
	ConflictCount int `json:"conflict_count"`
}

// ResolvedPayload announces a successful resolution.
type ResolvedPayload struct {
	ResolutionID string `json:"resolution_id"`
	BookID       string `json:"book_id"`
	StrategyUsed string `json:"strategy_used"`
}

// ProgressPayload reports batch progress after each item.
type ProgressPayload struct {
	BatchID   string `json:"batch_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// SubBatchPayload announces a completed sub-batch.
type SubBatchPayload struct {
	BatchID  string `json:"batch_id"`
	Index    int    `json:"index"`
	Size     int    `json:"size"`
	Of       int    `json:"of"`
}

// BatchCompletedPayload announces a finished batch.
type BatchCompletedPayload struct {
	BatchID        string `json:"batch_id"`
	ProcessedCount int    `json:"processed_count"`
	SuccessCount   int    `json:"success_count"`
	ErrorCount     int    `json:"error_count"`
}

// BatchCancelledPayload announces a cancelled batch.
type BatchCancelledPayload struct {
	BatchID        string `json:"batch_id"`
	ProcessedCount int    `json:"processed_count"`
}

// EscalatedPayload announces a workflow escalation.
type EscalatedPayload struct {
	WorkflowID     string `json:"workflow_id"`
	BookID         string `json:"book_id"`
	TargetRole     string `json:"target_role"`
	Urgency        string `json:"urgency"`
	BusinessImpact string `json:"business_impact,omitempty"`
}

// ManualReviewPayload announces a resolution routed to manual review.
type ManualReviewPayload struct {
	ResolutionID string `json:"resolution_id"`
	BookID       string `json:"book_id"`
	AssignedUser string `json:"assigned_user,omitempty"`
}
