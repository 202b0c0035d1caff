package redis

import (
	"context"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/post"
)

// RegisterPostType creates or updates a post type definition (upsert by name).
func (s *Store) RegisterPostType(ctx context.Context, t *post.Type) error {
	key := entityKey(prefixPostType, t.Definition.Name)

	var existing post.Type
	err := s.getEntity(ctx, key, &existing)
	switch {
	case err == nil:
		// Preserve original creation time on upsert.
		t.CreatedAt = existing.CreatedAt
		t.UpdatedAt = now()
	case !isRedisNil(err):
		return err
	}

	return s.setEntity(ctx, key, t)
}

// GetPostType returns a post type by name.
func (s *Store) GetPostType(ctx context.Context, name string) (*post.Type, error) {
	var t post.Type
	if err := s.getEntity(ctx, entityKey(prefixPostType, name), &t); err != nil {
		if isRedisNil(err) {
			return nil, syndicate.ErrPostTypeNotFound
		}
		return nil, err
	}
	return &t, nil
}
