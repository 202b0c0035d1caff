package syndicate

import "time"

// Config holds the configuration for a Syndicate instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the delivery engine checks the queues.
	PollInterval time.Duration

	// BatchSize is the maximum number of messages dequeued per queue per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// VisibilityTimeout is how long a dequeued message stays leased before
	// it becomes visible again.
	VisibilityTimeout time.Duration

	// MaxRetries is the retry budget per delivery target.
	MaxRetries int

	// BaseRetryDelay is the backoff delay before the first retry; it doubles
	// per retry up to MaxRetryDelay.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration

	// TargetRatePerSec caps outbound deliveries per target host. 0 is unlimited.
	TargetRatePerSec int

	// SkewTolerance bounds how far a signed request timestamp may drift
	// from server time.
	SkewTolerance time.Duration

	// SubscriptionPageSize bounds how many subscribers one fan-out message covers.
	SubscriptionPageSize int

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries on shutdown.
	ShutdownTimeout time.Duration

	// CacheTTL is the TTL for the post type registry's in-memory cache.
	// Set to 0 to disable caching.
	CacheTTL time.Duration

	// DiscoveryTimeout is the HTTP timeout per discovery probe.
	DiscoveryTimeout time.Duration

	// DiscoveryCacheTTL is how long resolved delivery endpoints are cached.
	DiscoveryCacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:          10,
		PollInterval:         1 * time.Second,
		BatchSize:            50,
		RequestTimeout:       30 * time.Second,
		VisibilityTimeout:    60 * time.Second,
		MaxRetries:           5,
		BaseRetryDelay:       5 * time.Second,
		MaxRetryDelay:        2 * time.Hour,
		SkewTolerance:        60 * time.Second,
		SubscriptionPageSize: 50,
		ShutdownTimeout:      30 * time.Second,
		CacheTTL:             30 * time.Second,
		DiscoveryTimeout:     10 * time.Second,
		DiscoveryCacheTTL:    5 * time.Minute,
	}
}
