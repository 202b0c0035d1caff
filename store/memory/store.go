// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/post"
	synstore "github.com/xraph/syndicate/store"
	"github.com/xraph/syndicate/subscription"
)

// compile-time interface check.
var _ synstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	credentials   map[string]*hawk.Credential          // keyed by credential ID
	posts         map[string]*post.Post                // keyed by owner|postID
	versions      map[string]*post.Version             // keyed by owner|postID|versionID
	postTypes     map[string]*post.Type                // keyed by type name
	subscriptions map[string]*subscription.Subscription // keyed by ID string
	subOrder      []string                             // subscription IDs in creation order
	apps          map[string]*app.App                  // keyed by ID string
	failures      map[string]*failure.Record           // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		credentials:   make(map[string]*hawk.Credential),
		posts:         make(map[string]*post.Post),
		versions:      make(map[string]*post.Version),
		postTypes:     make(map[string]*post.Type),
		subscriptions: make(map[string]*subscription.Subscription),
		apps:          make(map[string]*app.App),
		failures:      make(map[string]*failure.Record),
	}
}

func postKey(owner string, postID id.ID) string {
	return owner + "|" + postID.String()
}

func versionKey(owner string, postID, versionID id.ID) string {
	return owner + "|" + postID.String() + "|" + versionID.String()
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return syndicate.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// hawk.CredentialStore
// ──────────────────────────────────────────────────

// CreateCredential persists a credential.
func (s *Store) CreateCredential(_ context.Context, cred *hawk.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[cred.ID] = cred
	return nil
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(_ context.Context, credID string) (*hawk.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[credID]
	if !ok {
		return nil, hawk.ErrUnknownCredential
	}
	return cred, nil
}

// DeleteCredential revokes a credential.
func (s *Store) DeleteCredential(_ context.Context, credID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[credID]; !ok {
		return hawk.ErrUnknownCredential
	}
	delete(s.credentials, credID)
	return nil
}

// ──────────────────────────────────────────────────
// post.Store
// ──────────────────────────────────────────────────

// CreatePost persists a post.
func (s *Store) CreatePost(_ context.Context, p *post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[postKey(p.Owner, p.ID)] = p
	return nil
}

// GetPost returns a post by owner and ID.
func (s *Store) GetPost(_ context.Context, owner string, postID id.ID) (*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postKey(owner, postID)]
	if !ok {
		return nil, syndicate.ErrPostNotFound
	}
	return p, nil
}

// PutVersion persists one post version document.
func (s *Store) PutVersion(_ context.Context, v *post.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions[versionKey(v.Owner, v.PostID, v.ID)] = v
	return nil
}

// GetVersion returns a version by its (owner, post, version) key.
func (s *Store) GetVersion(_ context.Context, owner string, postID, versionID id.ID) (*post.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[versionKey(owner, postID, versionID)]
	if !ok {
		return nil, syndicate.ErrVersionNotFound
	}
	return v, nil
}

// ListVersions returns all versions of a post, newest first.
func (s *Store) ListVersions(_ context.Context, owner string, postID id.ID) ([]*post.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := postKey(owner, postID) + "|"
	var result []*post.Version
	for k, v := range s.versions {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			result = append(result, v)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PublishedAt.Equal(result[j].PublishedAt) {
			return result[i].PublishedAt.After(result[j].PublishedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// post.TypeStore
// ──────────────────────────────────────────────────

// RegisterPostType creates or updates a post type definition (upsert by name).
func (s *Store) RegisterPostType(_ context.Context, t *post.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.postTypes[t.Definition.Name]; ok {
		existing.Definition = t.Definition
		existing.UpdatedAt = time.Now().UTC()
		return nil
	}

	s.postTypes[t.Definition.Name] = t
	return nil
}

// GetPostType returns a post type by name.
func (s *Store) GetPostType(_ context.Context, name string) (*post.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.postTypes[name]
	if !ok {
		return nil, syndicate.ErrPostTypeNotFound
	}
	return t, nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

// CreateSubscription persists a subscription.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sub.ID.String()
	if _, ok := s.subscriptions[key]; !ok {
		s.subOrder = append(s.subOrder, key)
	}
	s.subscriptions[key] = sub
	return nil
}

// DeleteSubscription removes a subscription.
func (s *Store) DeleteSubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subID.String()
	if _, ok := s.subscriptions[key]; !ok {
		return syndicate.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, key)
	for i, k := range s.subOrder {
		if k == key {
			s.subOrder = append(s.subOrder[:i], s.subOrder[i+1:]...)
			break
		}
	}
	return nil
}

// matchingSubscribersLocked returns matching subscriptions in creation order.
func (s *Store) matchingSubscribersLocked(owner, postType string) []*subscription.Subscription {
	var result []*subscription.Subscription
	for _, key := range s.subOrder {
		sub := s.subscriptions[key]
		if sub == nil || sub.Owner != owner {
			continue
		}
		if !sub.Matches(postType) {
			continue
		}
		result = append(result, sub)
	}
	return result
}

// ListSubscribers returns the owner's matching subscriptions, windowed.
func (s *Store) ListSubscribers(_ context.Context, owner, postType string, skip, take int) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := s.matchingSubscribersLocked(owner, postType)
	if take <= 0 || skip >= len(matching) {
		return nil, nil
	}

	matching = matching[skip:]
	if take < len(matching) {
		matching = matching[:take]
	}
	return matching, nil
}

// CountSubscribers returns how many of the owner's subscriptions match postType.
func (s *Store) CountSubscribers(_ context.Context, owner, postType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.matchingSubscribersLocked(owner, postType)), nil
}

// ──────────────────────────────────────────────────
// app.Store
// ──────────────────────────────────────────────────

// CreateApp persists an app registration.
func (s *Store) CreateApp(_ context.Context, a *app.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apps[a.ID.String()] = a
	return nil
}

// GetApp returns an app by ID.
func (s *Store) GetApp(_ context.Context, appID id.ID) (*app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[appID.String()]
	if !ok {
		return nil, syndicate.ErrAppNotFound
	}
	return a, nil
}

// DeleteApp removes an app registration.
func (s *Store) DeleteApp(_ context.Context, appID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[appID.String()]; !ok {
		return syndicate.ErrAppNotFound
	}
	delete(s.apps, appID.String())
	return nil
}

// ListAppsMatching returns the owner's apps whose filter matches postType.
func (s *Store) ListAppsMatching(_ context.Context, owner, postType string) ([]*app.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*app.App
	for _, a := range s.apps {
		if a.Owner != owner {
			continue
		}
		if !a.Matches(postType) {
			continue
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// failure.Store
// ──────────────────────────────────────────────────

// PushFailure writes a terminal failure record.
func (s *Store) PushFailure(_ context.Context, rec *failure.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[rec.ID.String()] = rec
	return nil
}

// GetFailure returns a record by ID.
func (s *Store) GetFailure(_ context.Context, failureID id.ID) (*failure.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.failures[failureID.String()]
	if !ok {
		return nil, syndicate.ErrFailureNotFound
	}
	return rec, nil
}

// ListFailures returns records, optionally filtered.
func (s *Store) ListFailures(_ context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*failure.Record, 0, len(s.failures))
	for _, rec := range s.failures {
		if opts.Owner != "" && rec.Owner != opts.Owner {
			continue
		}
		if opts.Target != "" && rec.Target != opts.Target {
			continue
		}
		if opts.From != nil && rec.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && rec.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, rec)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// PurgeFailures deletes records older than a threshold.
func (s *Store) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, rec := range s.failures {
		if rec.FailedAt.Before(before) {
			delete(s.failures, k)
			count++
		}
	}
	return count, nil
}

// CountFailures returns the total number of records.
func (s *Store) CountFailures(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.failures)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
