package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
)

// FanoutStore is the read surface fan-out needs to expand a post write into
// its recipient set.
type FanoutStore interface {
	CountSubscribers(ctx context.Context, owner, postType string) (int, error)
	ListAppsMatching(ctx context.Context, owner, postType string) ([]*app.App, error)
}

// Fanout turns one post-version write into the set of notification messages
// it implies. Enqueueing is all-or-error from the caller's point of view: the
// first enqueue failure aborts and is returned, so a failed write is never
// silently half-fanned-out.
type Fanout struct {
	queues   queue.Set
	store    FanoutStore
	pageSize int
	logger   *slog.Logger
}

// NewFanout creates a fan-out producer. pageSize bounds how many subscribers
// one Subscription message covers.
func NewFanout(queues queue.Set, store FanoutStore, pageSize int, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Fanout{
		queues:   queues,
		store:    store,
		pageSize: pageSize,
		logger:   logger,
	}
}

// OnPostWrite enqueues the notification messages implied by one post version:
// a Mention per distinct mentioned user other than the author, a Subscription
// per page of matching subscribers, an AppNotification per matching app, and
// a MetaSubscription per subscriber page when the version is a meta post.
// Returns the number of messages enqueued.
func (f *Fanout) OnPostWrite(ctx context.Context, v *post.Version) (int, error) {
	enqueued := 0

	seen := make(map[string]struct{}, len(v.Mentions))
	for _, m := range v.Mentions {
		if m.Entity == "" || m.Entity == v.Author {
			continue
		}
		if _, dup := seen[m.Entity]; dup {
			continue
		}
		seen[m.Entity] = struct{}{}

		msg := &notification.Message{
			ID:        id.NewNotificationID(),
			Kind:      notification.KindMention,
			Owner:     v.Owner,
			User:      m.Entity,
			PostID:    v.PostID,
			VersionID: v.ID,
		}
		if err := f.queues.Enqueue(ctx, msg, 0); err != nil {
			return enqueued, fmt.Errorf("delivery: enqueue mention for %s: %w", m.Entity, err)
		}
		enqueued++
	}

	count, err := f.store.CountSubscribers(ctx, v.Owner, v.Type)
	if err != nil {
		return enqueued, fmt.Errorf("delivery: count subscribers: %w", err)
	}
	kind := notification.KindSubscription
	if post.IsMeta(v.Type) {
		kind = notification.KindMetaSubscription
	}
	for skip := 0; skip < count; skip += f.pageSize {
		take := f.pageSize
		if skip+take > count {
			take = count - skip
		}
		msg := &notification.Message{
			ID:        id.NewNotificationID(),
			Kind:      kind,
			Owner:     v.Owner,
			PostID:    v.PostID,
			VersionID: v.ID,
			Skip:      skip,
			Take:      take,
		}
		if err := f.queues.Enqueue(ctx, msg, 0); err != nil {
			return enqueued, fmt.Errorf("delivery: enqueue subscription page %d: %w", skip, err)
		}
		enqueued++
	}

	apps, err := f.store.ListAppsMatching(ctx, v.Owner, v.Type)
	if err != nil {
		return enqueued, fmt.Errorf("delivery: list apps: %w", err)
	}
	for _, a := range apps {
		msg := &notification.Message{
			ID:        id.NewNotificationID(),
			Kind:      notification.KindAppNotification,
			Owner:     v.Owner,
			PostID:    v.PostID,
			VersionID: v.ID,
			AppID:     a.ID,
		}
		if err := f.queues.Enqueue(ctx, msg, 0); err != nil {
			return enqueued, fmt.Errorf("delivery: enqueue app notification for %s: %w", a.ID, err)
		}
		enqueued++
	}

	f.logger.DebugContext(ctx, "post fan-out enqueued",
		"owner", v.Owner, "post", v.PostID, "version", v.ID, "messages", enqueued)
	return enqueued, nil
}
