package shelfsync

import (
	"context"
	"time"

	"github.com/shelfsync/shelfsync/pkg/batch"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// sweepInterval is how often pending reviews are checked for escalation
// timeouts while the engine is running.
const sweepInterval = time.Minute

// Health reports the engine's operational state.
type Health struct {
	Status         string        `json:"status"`
	Running        bool          `json:"running"`
	Uptime         time.Duration `json:"uptime,omitempty"`
	PendingReviews int           `json:"pending_reviews"`
	CachedRankings int           `json:"cached_rankings"`
	Subscribers    int           `json:"subscribers"`
	AuditEntries   int           `json:"audit_entries"`
}

// Start wires the inbound event subscriptions and begins the periodic
// escalation sweep. Call it once per engine.
func (e *engine) Start(ctx context.Context) error {
	e.startedAt = time.Now()
	e.subscribeInbound(ctx)

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ids := e.reviews.SweepTimeouts(); len(ids) > 0 {
					e.logger.Info().Int("escalated", len(ids)).Msg("Escalation sweep")
				}
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	e.logger.Info().Msg("Engine started")
	return nil
}

// Stop shuts down the sweep loop and the event broker. Idempotent.
func (e *engine) Stop() error {
	select {
	case <-e.stopCh:
		// Already stopped
	default:
		close(e.stopCh)
	}
	return e.bus.Close()
}

// Health reports the engine's operational state.
func (e *engine) Health() Health {
	h := Health{
		Status:         "ok",
		PendingReviews: len(e.reviews.Pending()),
		CachedRankings: e.recCache.ItemCount(),
		Subscribers:    e.bus.SubscriberCount(),
		AuditEntries:   e.auditLog.Len(),
	}
	if !e.startedAt.IsZero() {
		select {
		case <-e.stopCh:
		default:
			h.Running = true
			h.Uptime = time.Since(e.startedAt)
		}
	}
	return h
}

// Inbound payload types the engine consumes from the sync transport.

// DetectionRequest asks the engine to detect, and optionally resolve,
// conflicts in the given pairs.
type DetectionRequest struct {
	Pairs       []conflict.Pair `json:"pairs"`
	AutoResolve bool            `json:"auto_resolve"`
}

// ResolutionRequest asks the engine to resolve one conflict.
type ResolutionRequest struct {
	Conflict   *conflict.Conflict `json:"conflict"`
	StrategyID string             `json:"strategy_id,omitempty"`
}

// subscribeInbound wires the engine's inbound topics to their handlers.
// Handlers run synchronously on the publisher's goroutine and isolate
// their own failures; a bad inbound payload is logged, never fatal.
func (e *engine) subscribeInbound(ctx context.Context) {
	e.bus.SubscribeFunc(string(events.InboundConflictDetected), func(ev events.Event) {
		req, ok := ev.Data.(DetectionRequest)
		if !ok {
			e.logger.Warn().Str("topic", string(ev.Topic)).Msg("Unexpected inbound payload")
			return
		}
		conflicts, err := e.DetectConflicts(ctx, req.Pairs)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Inbound detection failed")
			return
		}
		if !req.AutoResolve {
			return
		}
		for i := range conflicts {
			if _, err := e.Resolve(ctx, &conflicts[i], ""); err != nil {
				e.logger.Warn().Err(err).Str("book_id", conflicts[i].BookID).
					Msg("Inbound auto-resolution failed")
			}
		}
	})

	e.bus.SubscribeFunc(string(events.InboundResolutionRequested), func(ev events.Event) {
		req, ok := ev.Data.(ResolutionRequest)
		if !ok {
			e.logger.Warn().Str("topic", string(ev.Topic)).Msg("Unexpected inbound payload")
			return
		}
		if _, err := e.Resolve(ctx, req.Conflict, strategy.ID(req.StrategyID)); err != nil {
			e.logger.Warn().Err(err).Msg("Inbound resolution failed")
		}
	})

	e.bus.SubscribeFunc(string(events.InboundBatchRequested), func(ev events.Event) {
		req, ok := ev.Data.(batch.Request)
		if !ok {
			e.logger.Warn().Str("topic", string(ev.Topic)).Msg("Unexpected inbound payload")
			return
		}
		// Inbound batches run detached; their lifecycle is observable on
		// the batch topics.
		e.StartBatch(ctx, req)
	})
}
