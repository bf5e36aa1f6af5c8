package workflow

import (
	"sync"
	"time"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/errors"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// preferenceThreshold is the minimum average rating a strategy needs
// before it is treated as a user's learned preference.
const preferenceThreshold = 3.5

// Feedback is one user's verdict on a resolution.
type Feedback struct {
	UserID       string        `json:"user_id"`
	ConflictType conflict.Type `json:"conflict_type"`
	StrategyUsed strategy.ID   `json:"strategy_used"`

	// Rating is 1 to 5, five being "exactly what I wanted".
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FeedbackStats aggregates feedback for one strategy.
type FeedbackStats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

// prefKey scopes learned preferences to one user and one conflict type.
type prefKey struct {
	userID       string
	conflictType conflict.Type
}

// ratingAgg accumulates ratings for one strategy under one key.
type ratingAgg struct {
	count int
	sum   int
}

func (a ratingAgg) average() float64 {
	if a.count == 0 {
		return 0
	}
	return float64(a.sum) / float64(a.count)
}

// FeedbackStore accumulates user feedback and derives per-strategy stats
// and per-user preferences from it. Safe for concurrent use.
type FeedbackStore struct {
	mu         sync.RWMutex
	entries    []Feedback
	byStrategy map[strategy.ID]*ratingAgg
	byPref     map[prefKey]map[strategy.ID]*ratingAgg
}

// NewFeedbackStore creates an empty FeedbackStore.
func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		byStrategy: make(map[strategy.ID]*ratingAgg),
		byPref:     make(map[prefKey]map[strategy.ID]*ratingAgg),
	}
}

// Record validates and stores one piece of feedback.
func (f *FeedbackStore) Record(fb Feedback) error {
	if fb.UserID == "" {
		return errors.NewValidationError("user_id", fb, "feedback has no user")
	}
	if fb.StrategyUsed == "" {
		return errors.NewValidationError("strategy_used", fb, "feedback names no strategy")
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return errors.NewValidationError("rating", fb.Rating, "rating must be between 1 and 5")
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, fb)

	agg, ok := f.byStrategy[fb.StrategyUsed]
	if !ok {
		agg = &ratingAgg{}
		f.byStrategy[fb.StrategyUsed] = agg
	}
	agg.count++
	agg.sum += fb.Rating

	key := prefKey{userID: fb.UserID, conflictType: fb.ConflictType}
	perStrategy, ok := f.byPref[key]
	if !ok {
		perStrategy = make(map[strategy.ID]*ratingAgg)
		f.byPref[key] = perStrategy
	}
	pagg, ok := perStrategy[fb.StrategyUsed]
	if !ok {
		pagg = &ratingAgg{}
		perStrategy[fb.StrategyUsed] = pagg
	}
	pagg.count++
	pagg.sum += fb.Rating
	return nil
}

// StrategyStats returns per-strategy feedback aggregates.
func (f *FeedbackStore) StrategyStats() map[strategy.ID]FeedbackStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[strategy.ID]FeedbackStats, len(f.byStrategy))
	for id, agg := range f.byStrategy {
		out[id] = FeedbackStats{Count: agg.count, AverageRating: agg.average()}
	}
	return out
}

// Preferred returns the strategy a user has learned to trust for a
// conflict type: the best-rated one, provided its average clears the
// preference threshold.
func (f *FeedbackStore) Preferred(userID string, conflictType conflict.Type) (strategy.ID, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	perStrategy, ok := f.byPref[prefKey{userID: userID, conflictType: conflictType}]
	if !ok {
		return "", false
	}

	var (
		best    strategy.ID
		bestAvg float64
	)
	for id, agg := range perStrategy {
		avg := agg.average()
		// ties break lexically so the answer is stable across map order
		if avg > bestAvg || (avg == bestAvg && best != "" && id < best) {
			best, bestAvg = id, avg
		}
	}
	if bestAvg < preferenceThreshold {
		return "", false
	}
	return best, true
}

// Len returns the number of recorded feedback entries.
func (f *FeedbackStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
