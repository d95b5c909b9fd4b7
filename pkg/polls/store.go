package polls

import "context"

// Store is the sole authority for poll document state. Implementations must
// make SetField and DeleteField atomic per field so that concurrent writers
// touching disjoint fields of the same document never lose updates.
//
// Every operation against an expired or never-created poll fails with a
// KindNotFound error; expiry is indistinguishable from absence.
type Store interface {
	// Create persists a new document together with its time-to-live as a
	// single unit. The document is retrievable immediately on success.
	Create(ctx context.Context, poll *Poll) error
	// Get returns the full current document.
	Get(ctx context.Context, pollID string) (*Poll, error)
	// SetField writes exactly one field without disturbing siblings.
	SetField(ctx context.Context, pollID string, field Field, value any) error
	// DeleteField removes one field. A missing field is not an error.
	DeleteField(ctx context.Context, pollID string, field Field) error
}
