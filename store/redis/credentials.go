package redis

import (
	"context"

	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/internal/entity"
)

// storedCredential is the persisted shape of a credential. The signing key
// is excluded from the public JSON form, so the store carries it explicitly.
type storedCredential struct {
	entity.Entity

	ID        string         `json:"id"`
	Key       []byte         `json:"key"`
	Algorithm hawk.Algorithm `json:"algorithm"`
	Principal string         `json:"principal"`
}

// CreateCredential persists a credential.
func (s *Store) CreateCredential(ctx context.Context, cred *hawk.Credential) error {
	sc := storedCredential{
		Entity:    cred.Entity,
		ID:        cred.ID,
		Key:       cred.Key,
		Algorithm: cred.Algorithm,
		Principal: cred.Principal,
	}
	return s.setEntity(ctx, entityKey(prefixCredential, cred.ID), &sc)
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(ctx context.Context, credID string) (*hawk.Credential, error) {
	var sc storedCredential
	if err := s.getEntity(ctx, entityKey(prefixCredential, credID), &sc); err != nil {
		if isRedisNil(err) {
			return nil, hawk.ErrUnknownCredential
		}
		return nil, err
	}

	return &hawk.Credential{
		Entity:    sc.Entity,
		ID:        sc.ID,
		Key:       sc.Key,
		Algorithm: sc.Algorithm,
		Principal: sc.Principal,
	}, nil
}

// DeleteCredential revokes a credential.
func (s *Store) DeleteCredential(ctx context.Context, credID string) error {
	deleted, err := s.rdb.Del(ctx, entityKey(prefixCredential, credID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return hawk.ErrUnknownCredential
	}
	return nil
}
