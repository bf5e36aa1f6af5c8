package workflow

import "sync"

// ReviewerPool hands out reviewers round-robin so pending reviews spread
// evenly across the configured team.
type ReviewerPool struct {
	mu    sync.Mutex
	users []string
	next  int
}

// NewReviewerPool creates a pool over the given reviewers. An empty pool
// assigns nobody.
func NewReviewerPool(users []string) *ReviewerPool {
	return &ReviewerPool{users: users}
}

// Next returns the next reviewer in rotation, or "" for an empty pool.
func (p *ReviewerPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.users) == 0 {
		return ""
	}
	user := p.users[p.next%len(p.users)]
	p.next++
	return user
}
