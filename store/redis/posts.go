package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/post"
)

// CreatePost persists a post.
func (s *Store) CreatePost(ctx context.Context, p *post.Post) error {
	return s.setEntity(ctx, entityKey(prefixPost, postRef(p.Owner, p.ID.String())), p)
}

// GetPost returns a post by owner and ID.
func (s *Store) GetPost(ctx context.Context, owner string, postID id.ID) (*post.Post, error) {
	var p post.Post
	if err := s.getEntity(ctx, entityKey(prefixPost, postRef(owner, postID.String())), &p); err != nil {
		if isRedisNil(err) {
			return nil, syndicate.ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

// PutVersion persists one post version and indexes it by publish time.
func (s *Store) PutVersion(ctx context.Context, v *post.Version) error {
	ref := versionRef(v.Owner, v.PostID.String(), v.ID.String())

	raw, err := marshalEntity(v)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey(prefixVersion, ref), raw, 0)
	pipe.ZAdd(ctx, zVersionsPost+postRef(v.Owner, v.PostID.String()), goredis.Z{
		Score:  scoreFromTime(v.PublishedAt),
		Member: v.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// GetVersion returns a version by its (owner, post, version) key.
func (s *Store) GetVersion(ctx context.Context, owner string, postID, versionID id.ID) (*post.Version, error) {
	ref := versionRef(owner, postID.String(), versionID.String())

	var v post.Version
	if err := s.getEntity(ctx, entityKey(prefixVersion, ref), &v); err != nil {
		if isRedisNil(err) {
			return nil, syndicate.ErrVersionNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListVersions returns all versions of a post, newest first.
func (s *Store) ListVersions(ctx context.Context, owner string, postID id.ID) ([]*post.Version, error) {
	ids, err := s.rdb.ZRevRange(ctx, zVersionsPost+postRef(owner, postID.String()), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*post.Version, 0, len(ids))
	for _, versionID := range ids {
		ref := versionRef(owner, postID.String(), versionID)

		var v post.Version
		if err := s.getEntity(ctx, entityKey(prefixVersion, ref), &v); err != nil {
			if isRedisNil(err) {
				continue // index ahead of a deleted blob
			}
			return nil, err
		}
		result = append(result, &v)
	}
	return result, nil
}
