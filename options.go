package syndicate

import (
	"log/slog"
	"time"

	"github.com/xraph/syndicate/delivery"
	"github.com/xraph/syndicate/discovery"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/feed"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/observability"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
	"github.com/xraph/syndicate/store"
)

// Syndicate is the root federated post delivery engine.
type Syndicate struct {
	config     Config
	store      store.Store
	queues     queue.Set
	feed       *feed.Index
	resolver   discovery.Resolver
	serverCred *hawk.Credential

	registry   *post.Registry
	validator  *post.Validator
	verifier   *hawk.Verifier
	fanout     *delivery.Fanout
	engine     *delivery.Engine
	failureSvc *failure.Service

	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger
}

// Option configures a Syndicate instance.
type Option func(*Syndicate) error

// New creates a new Syndicate with the given options.
func New(opts ...Option) (*Syndicate, error) {
	s := &Syndicate{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		return nil, ErrNoStore
	}
	if s.queues == nil {
		return nil, ErrNoQueues
	}
	if s.feed == nil {
		return nil, ErrNoFeedIndex
	}
	if s.serverCred == nil {
		return nil, ErrNoServerCredential
	}
	s.wireServices()
	return s, nil
}

// WithStore sets the persistence backend.
func WithStore(st store.Store) Option {
	return func(s *Syndicate) error {
		s.store = st
		return nil
	}
}

// WithQueues sets the notification queue set.
func WithQueues(qs queue.Set) Option {
	return func(s *Syndicate) error {
		s.queues = qs
		return nil
	}
}

// WithFeedIndex sets the feed index.
func WithFeedIndex(ix *feed.Index) Option {
	return func(s *Syndicate) error {
		s.feed = ix
		return nil
	}
}

// WithResolver sets the entity discovery resolver. When unset, an HTTP
// Link-header resolver with endpoint caching is used.
func WithResolver(r discovery.Resolver) Option {
	return func(s *Syndicate) error {
		s.resolver = r
		return nil
	}
}

// WithServerCredential sets the credential outbound deliveries are signed with.
func WithServerCredential(cred *hawk.Credential) Option {
	return func(s *Syndicate) error {
		s.serverCred = cred
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syndicate) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Syndicate) error {
		s.metrics = m
		return nil
	}
}

// WithTracer sets the delivery tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Syndicate) error {
		s.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(s *Syndicate) error {
		s.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the delivery engine checks the queues.
func WithPollInterval(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of messages dequeued per queue per poll cycle.
func WithBatchSize(n int) Option {
	return func(s *Syndicate) error {
		s.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.RequestTimeout = d
		return nil
	}
}

// WithVisibilityTimeout sets the lease duration for dequeued messages.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.VisibilityTimeout = d
		return nil
	}
}

// WithMaxRetries sets the retry budget per delivery target.
func WithMaxRetries(n int) Option {
	return func(s *Syndicate) error {
		s.config.MaxRetries = n
		return nil
	}
}

// WithRetryDelays sets the base and maximum backoff delays.
func WithRetryDelays(base, maxDelay time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.BaseRetryDelay = base
		s.config.MaxRetryDelay = maxDelay
		return nil
	}
}

// WithTargetRate caps outbound deliveries per second per target host.
func WithTargetRate(perSec int) Option {
	return func(s *Syndicate) error {
		s.config.TargetRatePerSec = perSec
		return nil
	}
}

// WithSkewTolerance sets how far a signed request timestamp may drift.
func WithSkewTolerance(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.SkewTolerance = d
		return nil
	}
}

// WithSubscriptionPageSize sets how many subscribers one fan-out message covers.
func WithSubscriptionPageSize(n int) Option {
	return func(s *Syndicate) error {
		s.config.SubscriptionPageSize = n
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight deliveries on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.ShutdownTimeout = d
		return nil
	}
}

// WithCacheTTL sets the TTL for the post type registry's in-memory cache.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.CacheTTL = d
		return nil
	}
}

// WithDiscoveryCacheTTL sets how long resolved delivery endpoints are cached.
func WithDiscoveryCacheTTL(d time.Duration) Option {
	return func(s *Syndicate) error {
		s.config.DiscoveryCacheTTL = d
		return nil
	}
}
