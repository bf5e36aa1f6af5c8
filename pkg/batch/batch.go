// Package batch orchestrates resolution of many conflicts in one run.
// Work is chunked into sub-batches, every per-item failure is isolated and
// collected, and a run can be cancelled cooperatively at item boundaries.
package batch

import (
	"time"

	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/strategy"
)

// DefaultSubBatchSize is the number of conflicts processed per sub-batch.
const DefaultSubBatchSize = 100

// Request describes one batch run.
type Request struct {
	// BatchID identifies the run; one is generated when empty.
	BatchID string

	// Conflicts is the work list.
	Conflicts []*conflict.Conflict

	// StrategyID pins every item to one strategy. Empty means each
	// conflict gets the highest-confidence applicable strategy.
	StrategyID strategy.ID
}

// ItemError is one isolated per-item failure, correlated to its book.
type ItemError struct {
	BookID  string `json:"book_id"`
	Message string `json:"message"`
}

// MemoryMetrics reports the run's working-set accounting.
type MemoryMetrics struct {
	PeakBytes     int64 `json:"peak_bytes"`
	LimitBytes    int64 `json:"limit_bytes,omitempty"`
	Cleanups      int   `json:"cleanups"`
	ReleasedItems int   `json:"released_items"`
}

// Result summarizes a finished or cancelled batch run.
//
// ProcessedCount always equals SuccessCount plus ErrorCount: every item
// that was attempted is accounted for exactly once.
type Result struct {
	BatchID        string        `json:"batch_id"`
	TotalCount     int           `json:"total_count"`
	ProcessedCount int           `json:"processed_count"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	ReviewCount    int           `json:"review_count"`
	Errors         []ItemError   `json:"errors,omitempty"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	SubBatches     int           `json:"sub_batches"`
	Duration       time.Duration `json:"duration"`
	Memory         MemoryMetrics `json:"memory"`
}
