package workflow

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/audit"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
	"github.com/shelfsync/shelfsync/pkg/records"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// systemActor is recorded on transitions the engine makes on its own,
// such as timeout escalations.
const systemActor = "system"

// Manager owns review workflows: it opens them when automation routes a
// conflict to a human, enforces the state machine on every action, and
// escalates reviews that sit too long.
type Manager struct {
	registry  *strategy.Registry
	feedback  *FeedbackStore
	bus       *events.Broker
	auditLog  *audit.Log
	logger    *zerolog.Logger
	rules     []EscalationRule
	reviewers *ReviewerPool

	mu        sync.RWMutex
	workflows map[string]*Workflow

	// now is swappable for deterministic timeout tests.
	now func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEscalationRules replaces the default escalation rule set.
func WithEscalationRules(rules []EscalationRule) ManagerOption {
	return func(m *Manager) {
		if len(rules) > 0 {
			m.rules = rules
		}
	}
}

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithReviewerPool sets the pool reviews are assigned from when the caller
// does not name an assignee.
func WithReviewerPool(pool *ReviewerPool) ManagerOption {
	return func(m *Manager) {
		if pool != nil {
			m.reviewers = pool
		}
	}
}

// NewManager creates a Manager with the default escalation rules.
func NewManager(registry *strategy.Registry, feedback *FeedbackStore, bus *events.Broker, auditLog *audit.Log, logger *zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:  registry,
		feedback:  feedback,
		bus:       bus,
		auditLog:  auditLog,
		logger:    logger,
		rules:     DefaultEscalationRules,
		reviewers: NewReviewerPool(nil),
		workflows: make(map[string]*Workflow),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a pending review workflow for a conflict. Proposed carries
// the resolution data a strategy produced before routing to review, when
// there is any. An empty assignee draws the next reviewer from the pool.
func (m *Manager) Open(c *conflict.Conflict, resolutionID string, proposed *records.Record, assignee string) (*Workflow, error) {
	if c == nil {
		return nil, errors.NewValidationError("conflict", nil, "conflict is nil")
	}
	if c.BookID == "" {
		return nil, errors.NewValidationError("book_id", c, "conflict has no book ID")
	}
	if assignee == "" {
		assignee = m.reviewers.Next()
	}

	now := m.now()
	w := &Workflow{
		ID:           uuid.NewString(),
		ResolutionID: resolutionID,
		BookID:       c.BookID,
		ConflictType: c.Type,
		Severity:     c.Severity,
		State:        StatePendingReview,
		Proposed:     proposed,
		AssignedUser: assignee,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.mu.Lock()
	m.workflows[w.ID] = w
	m.mu.Unlock()

	m.logger.Info().
		Str("workflow_id", w.ID).
		Str("book_id", w.BookID).
		Str("conflict_type", string(w.ConflictType)).
		Str("assigned_user", w.AssignedUser).
		Msg("Review workflow opened")
	return w, nil
}

// Get returns a snapshot of a workflow by ID.
func (m *Manager) Get(id string) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, errors.NewNotFoundError("workflow", id)
	}
	snapshot := *w
	return &snapshot, nil
}

// Pending returns snapshots of the open workflows, oldest first.
func (m *Manager) Pending() []*Workflow {
	m.mu.RLock()
	var out []*Workflow
	for _, w := range m.workflows {
		if w.State == StatePendingReview {
			snapshot := *w
			out = append(out, &snapshot)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Approve accepts the proposed resolution.
func (m *Manager) Approve(id, actor, reason string) error {
	return m.transition(id, ActionApprove, actor, reason)
}

// Reject declines the proposed resolution.
func (m *Manager) Reject(id, actor, reason string) error {
	return m.transition(id, ActionReject, actor, reason)
}

// Escalate hands the review to the escalation target for its severity.
func (m *Manager) Escalate(id, actor, reason string) error {
	return m.transition(id, ActionEscalate, actor, reason)
}

// transition applies one action under the state machine. An action not
// legal from the current state fails with a transition error; nothing is
// mutated on failure.
func (m *Manager) transition(id string, action Action, actor, reason string) error {
	m.mu.Lock()
	w, ok := m.workflows[id]
	if !ok {
		m.mu.Unlock()
		return errors.NewNotFoundError("workflow", id)
	}

	next, ok := transitions[w.State][action]
	if !ok {
		from := w.State
		m.mu.Unlock()
		return errors.NewTransitionError(id, string(from), string(action))
	}

	w.State = next
	w.UpdatedAt = m.now()
	w.Notes = reason
	snapshot := *w
	m.mu.Unlock()

	m.auditLog.Record(audit.Entry{
		ResolutionID: snapshot.ResolutionID,
		BookID:       snapshot.BookID,
		Action:       auditAction(action),
		Actor:        actor,
		Reason:       reason,
	})

	if next == StateEscalated {
		m.publishEscalation(&snapshot)
	}

	m.logger.Info().
		Str("workflow_id", id).
		Str("action", string(action)).
		Str("state", string(next)).
		Str("actor", actor).
		Msg("Workflow transitioned")
	return nil
}

// SweepTimeouts escalates every pending workflow whose review has
// outlived its rule's timeout. Returns the escalated workflow IDs.
func (m *Manager) SweepTimeouts() []string {
	now := m.now()
	var escalated []string
	for _, w := range m.Pending() {
		rule, ok := matchRule(m.rules, w.Severity)
		if !ok || rule.Timeout <= 0 {
			continue
		}
		if now.Sub(w.CreatedAt) < rule.Timeout {
			continue
		}
		if err := m.Escalate(w.ID, systemActor, "review timed out"); err == nil {
			escalated = append(escalated, w.ID)
		}
	}
	return escalated
}

// publishEscalation announces an escalation with its rule's target.
func (m *Manager) publishEscalation(w *Workflow) {
	rule, _ := matchRule(m.rules, w.Severity)
	m.bus.Publish(events.ConflictEscalated, events.EscalatedPayload{
		WorkflowID:     w.ID,
		BookID:         w.BookID,
		TargetRole:     rule.TargetRole,
		Urgency:        rule.Urgency,
		BusinessImpact: rule.BusinessImpact,
	})
}

// RecordFeedback stores a user's verdict on a resolution and audits it.
func (m *Manager) RecordFeedback(fb Feedback) error {
	if err := m.feedback.Record(fb); err != nil {
		return err
	}
	m.auditLog.Record(audit.Entry{
		Action: audit.ActionFeedback,
		Actor:  fb.UserID,
		Reason: fb.Comment,
	})
	return nil
}

// PersonalizedRecommendations ranks strategies for a conflict with the
// user's learned preference consulted ahead of the generic ranking: when
// the user has a trusted strategy for this conflict type and it is
// applicable, it moves to the front.
func (m *Manager) PersonalizedRecommendations(c *conflict.Conflict, userID string) []strategy.Recommendation {
	recs := m.registry.Recommendations(c)
	if userID == "" || len(recs) < 2 {
		return recs
	}

	preferred, ok := m.feedback.Preferred(userID, c.Type)
	if !ok {
		return recs
	}

	for i, rec := range recs {
		if rec.Strategy != preferred {
			continue
		}
		if i == 0 {
			return recs
		}
		rec.Reason = "preferred by user for this conflict type"
		out := make([]strategy.Recommendation, 0, len(recs))
		out = append(out, rec)
		out = append(out, recs[:i]...)
		out = append(out, recs[i+1:]...)
		return out
	}
	return recs
}

// auditAction maps a workflow action to its audit action.
func auditAction(action Action) audit.Action {
	switch action {
	case ActionApprove:
		return audit.ActionApproved
	case ActionReject:
		return audit.ActionRejected
	default:
		return audit.ActionEscalated
	}
}
