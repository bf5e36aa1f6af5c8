package shelfsync

import (
	"github.com/shelfsync/shelfsync/pkg/events"
)

// Hook function types for engine events. Hooks are a thin convenience over
// subscribing to the event broker directly; they run synchronously on the
// publishing goroutine and must not block.
type (
	// ConflictDetectedHook is called when a detection pass completes.
	ConflictDetectedHook func(events.DetectedPayload)

	// ConflictResolvedHook is called when a conflict is resolved.
	ConflictResolvedHook func(events.ResolvedPayload)

	// BatchCompletedHook is called when a batch run finishes.
	BatchCompletedHook func(events.BatchCompletedPayload)

	// EscalatedHook is called when a review workflow escalates.
	EscalatedHook func(events.EscalatedPayload)
)

// OnConflictDetected registers a callback for completed detection passes.
func OnConflictDetected(e Engine, fn ConflictDetectedHook) {
	e.Events().SubscribeFunc(string(events.ConflictDetected), func(ev events.Event) {
		if payload, ok := ev.Data.(events.DetectedPayload); ok {
			fn(payload)
		}
	})
}

// OnConflictResolved registers a callback for resolved conflicts.
func OnConflictResolved(e Engine, fn ConflictResolvedHook) {
	e.Events().SubscribeFunc(string(events.ConflictResolved), func(ev events.Event) {
		if payload, ok := ev.Data.(events.ResolvedPayload); ok {
			fn(payload)
		}
	})
}

// OnBatchCompleted registers a callback for finished batch runs.
func OnBatchCompleted(e Engine, fn BatchCompletedHook) {
	e.Events().SubscribeFunc(string(events.BatchCompleted), func(ev events.Event) {
		if payload, ok := ev.Data.(events.BatchCompletedPayload); ok {
			fn(payload)
		}
	})
}

// OnEscalated registers a callback for escalated reviews.
func OnEscalated(e Engine, fn EscalatedHook) {
	e.Events().SubscribeFunc(string(events.ConflictEscalated), func(ev events.Event) {
		if payload, ok := ev.Data.(events.EscalatedPayload); ok {
			fn(payload)
		}
	})
}
