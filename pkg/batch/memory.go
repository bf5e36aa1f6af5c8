package batch

import (
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/records"
)

// recordOverhead approximates the fixed cost of one record beyond its
// string payload.
const recordOverhead = 96

// itemCost estimates the working-set bytes one conflict occupies while in
// flight. The estimate only needs to be proportional, not exact: it bounds
// how much a run holds before a cleanup.
func itemCost(c *conflict.Conflict) int64 {
	// A nil item still occupies a slot; it flows on to execution to be
	// reported as an item error.
	if c == nil {
		return recordOverhead
	}
	cost := int64(recordOverhead)
	cost += recordCost(c.Source)
	cost += recordCost(c.Target)
	return cost
}

func recordCost(r *records.Record) int64 {
	if r == nil {
		return 0
	}
	cost := int64(recordOverhead)
	cost += int64(len(r.BookID) + len(r.Title))
	for _, tag := range r.Tags {
		cost += int64(len(tag) + 16)
	}
	return cost
}

// memoryTracker bounds the run's working set. It is used by a single
// goroutine; the batch loop is sequential.
type memoryTracker struct {
	limit    int64 // 0 means unbounded
	current  int64
	peak     int64
	held     int
	cleanups int
	released int
}

func newMemoryTracker(limit int64) *memoryTracker {
	return &memoryTracker{limit: limit}
}

// fits reports whether cost can be admitted without crossing the limit.
func (m *memoryTracker) fits(cost int64) bool {
	return m.limit <= 0 || m.current+cost <= m.limit
}

// admit adds cost to the working set.
func (m *memoryTracker) admit(cost int64) {
	m.current += cost
	m.held++
	if m.current > m.peak {
		m.peak = m.current
	}
}

// cleanup releases the whole working set, returning how many items were
// freed. Called at sub-batch boundaries and under memory pressure.
func (m *memoryTracker) cleanup() int {
	freed := m.held
	if freed == 0 {
		return 0
	}
	m.current = 0
	m.held = 0
	m.cleanups++
	m.released += freed
	return freed
}

// metrics returns the run's accounting snapshot.
func (m *memoryTracker) metrics() MemoryMetrics {
	return MemoryMetrics{
		PeakBytes:     m.peak,
		LimitBytes:    m.limit,
		Cleanups:      m.cleanups,
		ReleasedItems: m.released,
	}
}
