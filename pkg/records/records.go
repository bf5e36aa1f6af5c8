// Package records defines the reading record replicated across devices and
// platforms. A record is the unit the rest of the engine reconciles: two
// copies of the same book's record diverge, the engine decides which data
// survives.
package records

import (
	"sort"
	"time"

	"github.com/shelfsync/shelfsync/pkg/errors"
)

// Platform identifies where a record copy originated.
type Platform string

// Known platforms. Custom platforms are allowed; these are the ones the
// built-in source-priority ordering knows about.
const (
	PlatformWeb     Platform = "web"
	PlatformMobile  Platform = "mobile"
	PlatformDesktop Platform = "desktop"
	PlatformEReader Platform = "ereader"
)

// Record is one replica of a book's reading state.
type Record struct {
	BookID      string    `json:"book_id" yaml:"book_id"`
	Title       string    `json:"title" yaml:"title"`
	Progress    float64   `json:"progress" yaml:"progress"` // percent, 0-100
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
	Platform    Platform  `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// Validate checks that the record carries enough identity to be reconciled.
func (r *Record) Validate() error {
	if r == nil {
		return errors.NewValidationError("record", nil, "record is nil")
	}
	if r.BookID == "" {
		return errors.NewValidationError("book_id", r.BookID, "book ID is required")
	}
	if r.Progress < 0 || r.Progress > 100 {
		return errors.NewValidationError("progress", r.Progress, "progress must be between 0 and 100")
	}
	return nil
}

// Clone returns a deep copy of the record. Resolution results hold clones so
// later mutation of the input cannot rewrite history.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Tags != nil {
		out.Tags = make([]string, len(r.Tags))
		copy(out.Tags, r.Tags)
	}
	return &out
}

// SortedTags returns the record's tags sorted, without mutating the record.
func (r *Record) SortedTags() []string {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	sort.Strings(tags)
	return tags
}

// Equal reports whether two records carry the same data. Tag order is not
// significant.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.BookID != other.BookID || r.Title != other.Title ||
		r.Progress != other.Progress || r.Platform != other.Platform ||
		!r.LastUpdated.Equal(other.LastUpdated) {
		return false
	}
	a, b := r.SortedTags(), other.SortedTags()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
