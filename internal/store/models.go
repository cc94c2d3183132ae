package store

import "time"

// RecordMeta carries the fields shared by every persisted record: who
// created it and when, and whether it has been edited since.
type RecordMeta struct {
	CreatorID        int64
	CreatorFirstName string
	CreatorLastName  string
	CreatedAt        time.Time
	IsEdited         bool
}

// Resource is a user-submitted catalog entry. Its comments, upvotes and
// flags live in their own collections keyed by resource id.
type Resource struct {
	ID          int64
	Title       string
	Description string
	URL         string
	RecordMeta
}

// Comment ids are scoped to their resource: (ResourceID, ID) is the key.
type Comment struct {
	ID         int64
	ResourceID int64
	Contents   string
	RecordMeta
}

// Upvote carries no content; one per (resource, creator), enforced at write
// time rather than by schema.
type Upvote struct {
	ID         int64
	ResourceID int64
	RecordMeta
}

// ReviewFlag marks a resource for moderator attention. The only record kind
// that supports in-place edits.
type ReviewFlag struct {
	ID         int64
	ResourceID int64
	Contents   string
	RecordMeta
}
