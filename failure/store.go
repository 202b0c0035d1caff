package failure

import (
	"context"
	"time"

	"github.com/xraph/syndicate/id"
)

// Store defines the persistence contract for delivery failure records.
type Store interface {
	// PushFailure writes a terminal failure record.
	PushFailure(ctx context.Context, rec *Record) error

	// GetFailure returns a record by ID.
	GetFailure(ctx context.Context, failureID id.ID) (*Record, error)

	// ListFailures returns records, optionally filtered.
	ListFailures(ctx context.Context, opts ListOpts) ([]*Record, error)

	// PurgeFailures deletes records older than a threshold.
	PurgeFailures(ctx context.Context, before time.Time) (int64, error)

	// CountFailures returns the total number of records.
	CountFailures(ctx context.Context) (int64, error)
}
