// Package storage defines the persistence collaborator the engine delegates
// to. The engine never touches physical storage directly: resolved records
// and prior-state snapshots go through this interface.
package storage

import (
	"context"

	"github.com/shelfsync/shelfsync/pkg/records"
)

// PersistedResolution is the slice of a resolution result the storage
// collaborator needs to retain.
type PersistedResolution struct {
	ResolutionID string
	BookID       string
	StrategyUsed string
	Resolved     *records.Record
	Prior        *records.Record
}

// Store is the persistence interface required of the storage collaborator.
type Store interface {
	// PersistResolution stores a resolution outcome.
	PersistResolution(ctx context.Context, res PersistedResolution) error

	// LoadPriorState returns the record state captured before the given
	// book's most recent resolution, or nil when no prior state is known.
	// Used by undo.
	LoadPriorState(ctx context.Context, bookID string) (*records.Record, error)
}
