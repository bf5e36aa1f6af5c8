package conflict

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/events"
)

// Detection confidence: a single clean divergence is classified with high
// confidence; concurrent divergences divide a lower base between them, so
// two simultaneous divergences come out at 0.3.
const (
	singleConflictConfidence    = 0.9
	multiConflictBaseConfidence = 0.6
)

// Detector applies detection rules to record pairs and produces typed
// conflicts with severity. Custom rules are registered during
// initialization, not mid-batch.
type Detector struct {
	thresholds Thresholds
	rules      []Rule
	bus        *events.Broker
	logger     *zerolog.Logger
}

// NewDetector creates a Detector with the built-in rules pre-registered.
func NewDetector(thresholds Thresholds, bus *events.Broker, logger *zerolog.Logger) *Detector {
	return &Detector{
		thresholds: thresholds,
		rules:      builtinRules(),
		bus:        bus,
		logger:     logger,
	}
}

// RegisterRule appends a custom detection rule. Rules run in registration
// order, built-ins first.
func (d *Detector) RegisterRule(rule Rule) error {
	if rule == nil {
		return errors.NewValidationError("rule", nil, "rule is nil")
	}
	if rule.Type() == "" {
		return errors.NewValidationError("rule", rule, "rule type is empty")
	}
	d.rules = append(d.rules, rule)
	return nil
}

// Thresholds returns the detector's configured thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect runs every matching rule against each pair and returns the
// detected conflicts. Malformed input (nil replica, missing book ID,
// mismatched book IDs) fails the whole call with a validation error;
// detection never silently skips invalid records.
//
// Multiple simultaneous divergences on one pair collapse into a single
// MULTIPLE_CONFLICTS entity whose severity is the maximum of the
// constituents and whose confidence drops with the number of concurrent
// divergences.
//
// The only side effect is a detection-completed event on the bus.
func (d *Detector) Detect(ctx context.Context, pairs []Pair) ([]Conflict, error) {
	if err := d.validate(pairs); err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, 0, len(pairs))
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, errors.ErrCanceled
		}
		if c, ok := d.detectPair(pair); ok {
			conflicts = append(conflicts, c)
		}
	}

	d.logger.Debug().
		Int("pairs", len(pairs)).
		Int("conflicts", len(conflicts)).
		Msg("Detection completed")

	d.bus.Publish(events.ConflictDetected, events.DetectedPayload{
		PairCount:     len(pairs),
		ConflictCount: len(conflicts),
	})

	return conflicts, nil
}

// validate checks the whole input before any rule runs, so a malformed
// pair fails the call rather than producing partial results.
func (d *Detector) validate(pairs []Pair) error {
	for i, pair := range pairs {
		if pair.Source == nil {
			return errors.NewValidationError("source", i, "pair source is nil")
		}
		if pair.Target == nil {
			return errors.NewValidationError("target", i, "pair target is nil")
		}
		if err := pair.Source.Validate(); err != nil {
			return err
		}
		if err := pair.Target.Validate(); err != nil {
			return err
		}
		if pair.Source.BookID != pair.Target.BookID {
			return errors.NewValidationError("book_id", pair.Target.BookID,
				"source and target identify different books")
		}
	}
	return nil
}

// detectPair runs the matching rules for one pair and collapses the
// findings into at most one conflict.
func (d *Detector) detectPair(pair Pair) (Conflict, bool) {
	type finding struct {
		conflictType Type
		details      Details
	}

	var findings []finding
	for _, rule := range d.rules {
		if pair.Hint != "" && rule.Type() != pair.Hint {
			continue
		}
		if details, ok := rule.Detect(pair.Source, pair.Target, d.thresholds); ok {
			findings = append(findings, finding{conflictType: rule.Type(), details: details})
		}
	}

	if len(findings) == 0 {
		return Conflict{}, false
	}

	base := Conflict{
		BookID: pair.Source.BookID,
		Source: pair.Source,
		Target: pair.Target,
	}

	if len(findings) == 1 {
		base.Type = findings[0].conflictType
		base.Details = findings[0].details
		base.Severity = d.thresholds.SeverityFor(base.Type, base.Details)
		base.Confidence = singleConflictConfidence
		return base, true
	}

	merged := Details{}
	for _, f := range findings {
		merged.merge(f.details)
		merged.Constituents = append(merged.Constituents, f.conflictType)
	}
	base.Type = MultipleConflicts
	base.Details = merged
	base.Severity = d.thresholds.SeverityFor(MultipleConflicts, merged)
	base.Confidence = multiConflictBaseConfidence / float64(len(findings))
	return base, true
}
