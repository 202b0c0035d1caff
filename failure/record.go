// Package failure records deliveries whose retry budget is exhausted. Records
// are written once, never mutated, and read by operators; nothing reprocesses
// them automatically.
package failure

import (
	"time"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/notification"
)

// Record is a terminal delivery failure.
type Record struct {
	entity.Entity

	// ID is the unique TypeID for this record.
	ID id.ID `json:"id"`

	// Target identifies the delivery destination (entity URI or app ID).
	Target string `json:"target"`

	// Kind is the notification variant that failed.
	Kind notification.Kind `json:"kind"`

	// Owner is the entity URI whose post triggered the chain.
	Owner string `json:"owner"`

	// PostID references the post being delivered.
	PostID id.ID `json:"post_id"`

	// VersionID references the post version being delivered.
	VersionID id.ID `json:"version_id"`

	// StatusCode is the HTTP status observed on the final attempt, 0 for
	// transport errors.
	StatusCode int `json:"status_code,omitempty"`

	// Reason is the free-text failure reason from the final attempt.
	Reason string `json:"reason"`

	// Attempts is the total number of delivery attempts made.
	Attempts int `json:"attempts"`

	// FailedAt is when the retry budget was exhausted.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for record listing.
type ListOpts struct {
	Offset int
	Limit  int
	Owner  string
	Target string
	From   *time.Time
	To     *time.Time
}
