package failure

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/notification"
)

// Service manages terminal delivery failure records.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new failure service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Push writes the terminal record for an exhausted delivery chain and returns
// it. The msg is the retry message whose budget ran out; statusCode and
// reason come from the final attempt.
func (svc *Service) Push(ctx context.Context, msg *notification.Message, statusCode int, reason string) (*Record, error) {
	// A retry message's counter already equals the attempts made; any other
	// kind is exhausted right after its own attempt.
	attempts := msg.Retries
	if msg.Kind != notification.KindRetry {
		attempts = msg.Retries + 1
	}

	rec := &Record{
		Entity:     entity.New(),
		ID:         id.NewFailureID(),
		Target:     msg.TargetID,
		Kind:       msg.EffectiveKind(),
		Owner:      msg.Owner,
		PostID:     msg.PostID,
		VersionID:  msg.VersionID,
		StatusCode: statusCode,
		Reason:     reason,
		Attempts:   attempts,
		FailedAt:   time.Now().UTC(),
	}

	if err := svc.store.PushFailure(ctx, rec); err != nil {
		return nil, err
	}

	svc.logger.WarnContext(ctx, "delivery failed permanently",
		"failure_id", rec.ID,
		"target", rec.Target,
		"kind", rec.Kind,
		"status", rec.StatusCode,
		"attempts", rec.Attempts,
	)
	return rec, nil
}

// Get returns a failure record by ID.
func (svc *Service) Get(ctx context.Context, failureID id.ID) (*Record, error) {
	return svc.store.GetFailure(ctx, failureID)
}

// List returns failure records matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Record, error) {
	return svc.store.ListFailures(ctx, opts)
}

// Purge removes records older than the threshold.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.PurgeFailures(ctx, before)
}

// Count returns the total number of failure records.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountFailures(ctx)
}
