package strategy

import (
	"sort"
	"sync"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/records"
)

// Registry is the ordered catalog of resolution strategies. Built-ins are
// pre-registered at construction; custom strategies register afterwards,
// during initialization rather than mid-batch. The registry is read-mostly
// after startup and safe for concurrent reads.
type Registry struct {
	mu      sync.RWMutex
	ordered []Strategy
	byID    map[ID]Strategy
}

// Option configures a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	titleSimilarityThreshold float64
	platformPriority         []records.Platform
}

// WithPlatformPriority overrides the source-priority platform order.
func WithPlatformPriority(priority []records.Platform) Option {
	return func(c *registryConfig) {
		if len(priority) > 0 {
			c.platformPriority = priority
		}
	}
}

// WithTitleSimilarityThreshold overrides the similarity above which the
// merge strategy treats two titles as the same work.
func WithTitleSimilarityThreshold(threshold float64) Option {
	return func(c *registryConfig) {
		if threshold > 0 {
			c.titleSimilarityThreshold = threshold
		}
	}
}

// NewRegistry creates a Registry with the built-in strategies
// pre-registered in their canonical order.
func NewRegistry(opts ...Option) *Registry {
	cfg := &registryConfig{
		titleSimilarityThreshold: conflict.DefaultTitleSimilarityThreshold,
		platformPriority:         DefaultPlatformPriority,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := &Registry{byID: make(map[ID]Strategy)}
	for _, s := range []Strategy{
		newLatestTimestampStrategy(),
		newSourcePriorityStrategy(cfg.platformPriority),
		newManualReviewStrategy(),
		newIntelligentMergeStrategy(cfg.titleSimilarityThreshold),
	} {
		// Built-in registration cannot collide.
		_ = r.Register(s)
	}
	return r
}

// Register adds a strategy to the catalog. Registration order is preserved
// and breaks confidence ties during selection.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return errors.NewValidationError("strategy", nil, "strategy is nil")
	}
	if s.ID() == "" {
		return errors.NewValidationError("strategy", s, "strategy ID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID()]; exists {
		return errors.ErrAlreadyExists
	}
	r.byID[s.ID()] = s
	r.ordered = append(r.ordered, s)
	return nil
}

// Get returns a strategy by ID.
func (r *Registry) Get(id ID) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// List returns the registered strategies in registration order.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Recommendations ranks the applicable strategies for a conflict by
// confidence, descending. The sort is stable: confidence ties keep
// registration order.
func (r *Registry) Recommendations(c *conflict.Conflict) []Recommendation {
	recs := make([]Recommendation, 0, r.Len())
	for _, s := range r.List() {
		if !s.Applicable(c) {
			continue
		}
		recs = append(recs, Recommendation{
			Strategy:   s.ID(),
			Confidence: s.Confidence(c),
			Reason:     s.Description(),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Confidence > recs[j].Confidence
	})
	return recs
}

// Best returns the highest-confidence applicable strategy for a conflict.
func (r *Registry) Best(c *conflict.Conflict) (Strategy, error) {
	recs := r.Recommendations(c)
	if len(recs) == 0 {
		return nil, errors.NewNotFoundError("applicable strategy", string(c.Type))
	}
	s, _ := r.Get(recs[0].Strategy)
	return s, nil
}
