package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/subscription"
)

// CreateSubscription persists a subscription and indexes it by owner in
// creation order.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	raw, err := marshalEntity(sub)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey(prefixSub, sub.ID.String()), raw, 0)
	pipe.ZAdd(ctx, zSubOwner+sub.Owner, goredis.Z{
		Score:  scoreFromTime(sub.CreatedAt),
		Member: sub.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteSubscription removes a subscription and its owner index entry.
func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	var sub subscription.Subscription
	if err := s.getEntity(ctx, entityKey(prefixSub, subID.String()), &sub); err != nil {
		if isRedisNil(err) {
			return syndicate.ErrSubscriptionNotFound
		}
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, entityKey(prefixSub, subID.String()))
	pipe.ZRem(ctx, zSubOwner+sub.Owner, subID.String())
	_, err := pipe.Exec(ctx)
	return err
}

// matchingSubscribers loads the owner's subscriptions in creation order and
// filters them by post type. Windowing happens after the type filter so
// pages stay stable as unrelated subscriptions come and go.
func (s *Store) matchingSubscribers(ctx context.Context, owner, postType string) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.ZRange(ctx, zSubOwner+owner, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var result []*subscription.Subscription
	for _, subID := range ids {
		var sub subscription.Subscription
		if err := s.getEntity(ctx, entityKey(prefixSub, subID), &sub); err != nil {
			if isRedisNil(err) {
				continue // index ahead of a deleted blob
			}
			return nil, err
		}
		if !sub.Matches(postType) {
			continue
		}
		result = append(result, &sub)
	}
	return result, nil
}

// ListSubscribers returns the owner's matching subscriptions, windowed.
func (s *Store) ListSubscribers(ctx context.Context, owner, postType string, skip, take int) ([]*subscription.Subscription, error) {
	if take <= 0 {
		return nil, nil
	}

	matching, err := s.matchingSubscribers(ctx, owner, postType)
	if err != nil {
		return nil, err
	}
	if skip >= len(matching) {
		return nil, nil
	}

	matching = matching[skip:]
	if take < len(matching) {
		matching = matching[:take]
	}
	return matching, nil
}

// CountSubscribers returns how many of the owner's subscriptions match postType.
func (s *Store) CountSubscribers(ctx context.Context, owner, postType string) (int, error) {
	matching, err := s.matchingSubscribers(ctx, owner, postType)
	if err != nil {
		return 0, err
	}
	return len(matching), nil
}
