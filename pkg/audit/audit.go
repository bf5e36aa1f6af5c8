// Package audit keeps the append-only trail of resolution actions.
// Entries are never mutated or deleted; undo and redo append new entries
// rather than rewriting history.
package audit

import (
	"sync"
	"time"
)

// Action is the kind of event an audit entry records.
type Action string

// Audit actions.
const (
	ActionResolved        Action = "resolved"
	ActionFailed          Action = "failed"
	ActionUndone          Action = "undone"
	ActionRedone          Action = "redone"
	ActionReviewRequested Action = "review_requested"
	ActionApproved        Action = "approved"
	ActionRejected        Action = "rejected"
	ActionEscalated       Action = "escalated"
	ActionFeedback        Action = "feedback"
)

// Entry is a single append-only audit record.
type Entry struct {
	ResolutionID string    `json:"resolution_id"`
	BookID       string    `json:"book_id,omitempty"`
	Action       Action    `json:"action"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Log is an in-memory append-only audit log. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// Record appends an entry. The timestamp is set here if the caller left it
// zero, so entries are always ordered by append time.
func (l *Log) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of all entries in append order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByResolution returns all entries for a resolution ID, in append order.
func (l *Log) ByResolution(resolutionID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.ResolutionID == resolutionID {
			out = append(out, e)
		}
	}
	return out
}

// ByActor returns all entries recorded by the given actor, in append order.
func (l *Log) ByActor(actor string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Actor == actor {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
