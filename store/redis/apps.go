package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/id"
)

// CreateApp persists an app registration and indexes it by owner.
func (s *Store) CreateApp(ctx context.Context, a *app.App) error {
	raw, err := marshalEntity(a)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey(prefixApp, a.ID.String()), raw, 0)
	pipe.ZAdd(ctx, zAppOwner+a.Owner, goredis.Z{
		Score:  scoreFromTime(a.CreatedAt),
		Member: a.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// GetApp returns an app by ID.
func (s *Store) GetApp(ctx context.Context, appID id.ID) (*app.App, error) {
	var a app.App
	if err := s.getEntity(ctx, entityKey(prefixApp, appID.String()), &a); err != nil {
		if isRedisNil(err) {
			return nil, syndicate.ErrAppNotFound
		}
		return nil, err
	}
	return &a, nil
}

// DeleteApp removes an app registration and its owner index entry.
func (s *Store) DeleteApp(ctx context.Context, appID id.ID) error {
	a, err := s.GetApp(ctx, appID)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, entityKey(prefixApp, appID.String()))
	pipe.ZRem(ctx, zAppOwner+a.Owner, appID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// ListAppsMatching returns the owner's apps whose filter matches postType.
func (s *Store) ListAppsMatching(ctx context.Context, owner, postType string) ([]*app.App, error) {
	ids, err := s.rdb.ZRange(ctx, zAppOwner+owner, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var result []*app.App
	for _, appID := range ids {
		var a app.App
		if err := s.getEntity(ctx, entityKey(prefixApp, appID), &a); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if !a.Matches(postType) {
			continue
		}
		result = append(result, &a)
	}
	return result, nil
}
