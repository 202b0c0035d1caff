package syndicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/syndicate/delivery"
	"github.com/xraph/syndicate/discovery"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/feed"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/store"
)

// wireServices initializes the internal services after options have been applied.
func (s *Syndicate) wireServices() {
	s.registry = post.NewRegistry(s.store, s.config.CacheTTL, s.logger)

	s.validator = post.NewValidator()

	nonces := hawk.NewNonceCache(2 * s.config.SkewTolerance)
	s.verifier = hawk.NewVerifier(s.store, nonces, s.config.SkewTolerance)

	s.failureSvc = failure.NewService(s.store, s.logger)

	s.fanout = delivery.NewFanout(s.queues, s.store, s.config.SubscriptionPageSize, s.logger)

	if s.resolver == nil {
		s.resolver = discovery.NewHTTPResolver(s.config.DiscoveryTimeout, s.config.DiscoveryCacheTTL)
	}

	s.engine = delivery.NewEngine(s.store, s.queues, s.resolver, s.failureSvc, delivery.EngineConfig{
		Concurrency:       s.config.Concurrency,
		PollInterval:      s.config.PollInterval,
		BatchSize:         s.config.BatchSize,
		RequestTimeout:    s.config.RequestTimeout,
		VisibilityTimeout: s.config.VisibilityTimeout,
		BaseRetryDelay:    s.config.BaseRetryDelay,
		MaxRetryDelay:     s.config.MaxRetryDelay,
		MaxRetries:        s.config.MaxRetries,
		TargetRatePerSec:  s.config.TargetRatePerSec,
		Credential:        s.serverCred,
		Metrics:           s.metrics,
		Tracer:            s.tracer,
	}, s.logger)
}

// Start begins the delivery engine.
func (s *Syndicate) Start(ctx context.Context) {
	s.engine.Start(ctx)
}

// Stop gracefully shuts down the delivery engine.
func (s *Syndicate) Stop(ctx context.Context) {
	s.engine.Stop(ctx)
}

// RegisterPostType registers a post type definition, optionally with a JSON
// Schema its content must satisfy.
func (s *Syndicate) RegisterPostType(ctx context.Context, def post.TypeDef) (*post.Type, error) {
	return s.registry.Register(ctx, def)
}

// Publish validates and persists a post, indexes its version for feeds, and
// fans out delivery notifications.
//
// The critical path:
//  1. Validate content against the registered type schema, if one exists.
//     Unregistered types are accepted as-is; remote servers define types
//     this server has never seen.
//  2. Persist the post and its first version.
//  3. Apply the version to the feed index (atomic per source document).
//  4. Enqueue mention, subscription, and app notification messages. An
//     enqueue failure is returned to the caller; the post stays persisted
//     and indexed.
func (s *Syndicate) Publish(ctx context.Context, p *post.Post) (*post.Version, error) {
	t, err := s.registry.Get(ctx, p.Type)
	switch {
	case err == nil:
		if t.Definition.Schema != nil {
			if validateErr := s.validator.Validate(t.Definition.Schema, p.Content); validateErr != nil {
				return nil, fmt.Errorf("%w: %s", ErrContentValidationFailed, validateErr.Error())
			}
		}
	case errors.Is(err, ErrPostTypeNotFound):
		// Unregistered type: no schema to enforce.
	default:
		return nil, fmt.Errorf("syndicate: look up post type %q: %w", p.Type, err)
	}

	now := time.Now().UTC()
	p.Entity = entity.New()
	if p.ID.IsNil() {
		p.ID = id.NewPostID()
	}
	if p.Author == "" {
		p.Author = p.Owner
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}

	if createErr := s.store.CreatePost(ctx, p); createErr != nil {
		return nil, fmt.Errorf("syndicate: persist post: %w", createErr)
	}

	v := &post.Version{
		Entity:      entity.New(),
		ID:          id.NewVersionID(),
		PostID:      p.ID,
		Owner:       p.Owner,
		Author:      p.Author,
		Type:        p.Type,
		Content:     p.Content,
		Mentions:    p.Mentions,
		Following:   p.Following,
		PublishedAt: p.PublishedAt,
		ReceivedAt:  now,
	}
	if putErr := s.store.PutVersion(ctx, v); putErr != nil {
		return nil, fmt.Errorf("syndicate: persist version: %w", putErr)
	}

	if indexErr := s.feed.Update(ctx, v); indexErr != nil {
		return nil, fmt.Errorf("syndicate: index version: %w", indexErr)
	}

	enqueued, fanErr := s.fanout.OnPostWrite(ctx, v)
	if fanErr != nil {
		return nil, fmt.Errorf("syndicate: fan out: %w", fanErr)
	}

	if s.metrics != nil {
		s.metrics.RecordPublish(p.Type)
		s.metrics.PendingDeliveries.Add(float64(enqueued))
	}

	s.logger.DebugContext(ctx, "post published",
		"post_id", p.ID,
		"version_id", v.ID,
		"type", p.Type,
		"notifications", enqueued,
	)

	return v, nil
}

// CreateCredential generates and persists a signing credential for a principal.
func (s *Syndicate) CreateCredential(ctx context.Context, principal string) (*hawk.Credential, error) {
	cred := &hawk.Credential{
		Entity:    entity.New(),
		ID:        id.NewCredentialID().String(),
		Key:       hawk.GenerateKey(),
		Algorithm: hawk.SHA256,
		Principal: principal,
	}
	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("syndicate: persist credential: %w", err)
	}
	return cred, nil
}

// IssueBewit creates a capability token granting access to resource until now+ttl.
func (s *Syndicate) IssueBewit(ctx context.Context, credentialID, resource string, ttl time.Duration) (string, error) {
	return s.verifier.IssueBewit(ctx, credentialID, resource, ttl)
}

// Verifier returns the request/bewit verifier.
func (s *Syndicate) Verifier() *hawk.Verifier {
	return s.verifier
}

// Feed returns the feed index.
func (s *Syndicate) Feed() *feed.Index {
	return s.feed
}

// Failures returns the delivery failure service.
func (s *Syndicate) Failures() *failure.Service {
	return s.failureSvc
}

// Registry returns the post type registry.
func (s *Syndicate) Registry() *post.Registry {
	return s.registry
}

// Store returns the underlying store.
func (s *Syndicate) Store() store.Store {
	return s.store
}
