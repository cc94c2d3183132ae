// Package counter allocates collision-free identifiers: one global,
// monotonically increasing resource id, and per-resource {comment, upvote,
// flag} child ids. Every allocation is a single atomic fetch-and-increment
// pushed down to the storage engine; no in-process locks are taken.
package counter

import (
	"context"
	"errors"
)

// Kind names one of the three child counters a resource carries.
type Kind string

const (
	KindComment Kind = "comment"
	KindUpvote  Kind = "upvote"
	KindFlag    Kind = "flag"
)

// ErrNoCounter is returned by NextChildID when the resource has no counter
// document. Absence is a hard error: defaulting to 0 would collide with a
// legitimately allocated id 0.
var ErrNoCounter = errors.New("counter: no counter document for resource")

// ErrUnknownKind is returned for a Kind outside {comment, upvote, flag}.
var ErrUnknownKind = errors.New("counter: unknown child kind")

// Allocator hands out identifiers. Two concurrent NextChildID calls for the
// same resource and kind never return the same value.
type Allocator interface {
	// NextResourceID returns the next global resource id (0 on first call)
	// and initializes the new resource's child counters in the same atomic
	// step.
	NextResourceID(ctx context.Context) (int64, error)

	// NextChildID returns the next id for the given child kind under
	// resourceID, or ErrNoCounter when no counter document exists.
	NextChildID(ctx context.Context, resourceID int64, kind Kind) (int64, error)

	// DropCounters removes the counter document for resourceID. Dropping a
	// resource that has no counters is not an error.
	DropCounters(ctx context.Context, resourceID int64) error
}

func (k Kind) valid() bool {
	return k == KindComment || k == KindUpvote || k == KindFlag
}
