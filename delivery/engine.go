package delivery

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/discovery"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/observability"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
	"github.com/xraph/syndicate/ratelimit"
	"github.com/xraph/syndicate/subscription"
)

// EngineStore is the read surface the engine needs to process a message.
type EngineStore interface {
	GetVersion(ctx context.Context, owner string, postID, versionID id.ID) (*post.Version, error)
	GetApp(ctx context.Context, appID id.ID) (*app.App, error)
	ListSubscribers(ctx context.Context, owner, postType string, skip, take int) ([]*subscription.Subscription, error)
}

// FailurePusher writes terminal records for exhausted delivery chains.
type FailurePusher interface {
	Push(ctx context.Context, msg *notification.Message, statusCode int, reason string) (*failure.Record, error)
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency       int
	PollInterval      time.Duration
	BatchSize         int
	RequestTimeout    time.Duration
	VisibilityTimeout time.Duration
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	MaxRetries        int

	// TargetRatePerSec caps outbound deliveries per target host.
	// 0 means unlimited.
	TargetRatePerSec int

	// Credential signs every outbound notification.
	Credential *hawk.Credential

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Engine is the delivery worker pool. It polls the five logical queues,
// attempts signed HTTP delivery per message, and drives the retry chain.
// Deleting the leased message is the only acknowledgment: a crash between
// send and delete redelivers after lease expiry, which is why handlers on
// the receiving side must be idempotent.
type Engine struct {
	store    EngineStore
	queues   queue.Set
	resolver discovery.Resolver
	sender   *Sender
	retrier  *Retrier
	limiter  *ratelimit.Limiter
	failures FailurePusher
	config   EngineConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, queues queue.Set, resolver discovery.Resolver, failures FailurePusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		queues:   queues,
		resolver: resolver,
		sender:   NewSender(cfg.RequestTimeout, cfg.Credential),
		retrier:  NewRetrier(cfg.BaseRetryDelay, cfg.MaxRetryDelay, cfg.MaxRetries),
		limiter:  ratelimit.New(),
		failures: failures,
		config:   cfg,
		logger:   logger,
	}
}

// Start begins the delivery workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
// In-flight HTTP exchanges are aborted; their messages are left for lease
// expiry rather than rolled back.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// pollLoop periodically drains visible messages from every queue and
// dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range queue.Names {
				q := e.queues[name]
				if q == nil {
					continue
				}

				for i := 0; i < e.config.BatchSize; i++ {
					leased, err := q.Dequeue(ctx, e.config.VisibilityTimeout)
					if err != nil {
						e.logger.ErrorContext(ctx, "dequeue failed", "queue", name, "error", err)
						break
					}
					if leased == nil {
						break
					}

					select {
					case <-ctx.Done():
						return
					case sem <- struct{}{}:
					}

					e.wg.Add(1)
					go func(q queue.Queue, l *queue.Leased) {
						defer e.wg.Done()
						defer func() { <-sem }()
						e.process(ctx, q, l)
					}(q, leased)
				}
			}
		}
	}
}

// target is one delivery destination expanded from a message.
type target struct {
	id       string // entity URI or app ID string
	user     string // subject user for the envelope
	endpoint string // resolved URL, empty when resolution failed
	err      error  // resolution error, treated as a transient failure
}

// process handles one leased message end to end.
func (e *Engine) process(ctx context.Context, q queue.Queue, leased *queue.Leased) {
	msg := leased.Message

	// The span ends with the outcome of the last attempt made under it; a
	// message settled without an attempt keeps the outcome it carried in.
	finalStatus, finalReason := msg.LastStatus, msg.LastReason
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, msg.ID.String(), string(msg.EffectiveKind()), msg.TargetID)
		defer func() { e.config.Tracer.EndDeliverySpan(span, finalStatus, finalReason) }()
	}

	// An exhausted retry chain is terminal: record the failure once and
	// drop the chain without another attempt.
	if msg.Kind == notification.KindRetry && msg.Retries >= e.retrier.MaxRetries() {
		if msg.FailureID.IsNil() {
			if _, err := e.failures.Push(ctx, msg, msg.LastStatus, msg.LastReason); err != nil {
				e.logger.ErrorContext(ctx, "record delivery failure", "notification_id", msg.ID, "error", err)
				return // keep the lease; retried after expiry
			}
			e.recordTerminalFailure()
		}
		e.ack(ctx, q, leased)
		return
	}

	// A kind this version of the engine cannot deliver ends its chain with a
	// failure record rather than vanishing after a log line.
	if !deliverable(msg.EffectiveKind()) {
		e.logger.WarnContext(ctx, "unknown notification kind", "notification_id", msg.ID, "kind", msg.Kind)
		if msg.FailureID.IsNil() {
			if _, err := e.failures.Push(ctx, msg, 0, "unknown notification kind: "+string(msg.EffectiveKind())); err != nil {
				e.logger.ErrorContext(ctx, "record delivery failure", "notification_id", msg.ID, "error", err)
				return
			}
			e.recordTerminalFailure()
		}
		e.ack(ctx, q, leased)
		return
	}

	v, err := e.store.GetVersion(ctx, msg.Owner, msg.PostID, msg.VersionID)
	if err != nil {
		e.logger.ErrorContext(ctx, "load post version",
			"notification_id", msg.ID, "post", msg.PostID, "version", msg.VersionID, "error", err)
		return
	}

	targets, err := e.expandTargets(ctx, msg, v)
	if err != nil {
		e.logger.ErrorContext(ctx, "expand targets", "notification_id", msg.ID, "error", err)
		return
	}

	// Ack only when every target's chain state was advanced. A failed retry
	// enqueue or failure write keeps the lease so expiry redelivers; the
	// identity tuple keeps the duplicate attempts idempotent downstream.
	settled := true
	for _, t := range targets {
		result, attemptErr := e.attempt(ctx, msg, v, t)
		finalStatus, finalReason = result.StatusCode, result.Error
		if attemptErr != nil {
			settled = false
		}
	}
	if settled {
		e.ack(ctx, q, leased)
	}
}

// deliverable reports whether the engine knows how to expand and deliver a
// notification variant.
func deliverable(kind notification.Kind) bool {
	switch kind {
	case notification.KindMention, notification.KindSubscription,
		notification.KindAppNotification, notification.KindMetaSubscription:
		return true
	}
	return false
}

// recordTerminalFailure updates the gauges when a chain ends in a failure
// record: one chain leaves the pending set and one record joins the backlog.
func (e *Engine) recordTerminalFailure() {
	if e.config.Metrics == nil {
		return
	}
	e.config.Metrics.FailureRecords.Inc()
	e.config.Metrics.PendingDeliveries.Dec()
}

// expandTargets maps a message to its delivery destinations. Resolution
// failures are attached per target so they feed that target's retry chain
// instead of blocking the whole message.
func (e *Engine) expandTargets(ctx context.Context, msg *notification.Message, v *post.Version) ([]target, error) {
	// A retry carries its single destination.
	if msg.Kind == notification.KindRetry {
		if msg.RetryKind == notification.KindAppNotification {
			return []target{e.appTarget(ctx, msg)}, nil
		}
		return []target{e.entityTarget(ctx, msg.TargetID, msg.TargetID)}, nil
	}

	switch msg.Kind {
	case notification.KindMention:
		return []target{e.entityTarget(ctx, msg.User, msg.User)}, nil

	case notification.KindAppNotification:
		return []target{e.appTarget(ctx, msg)}, nil

	case notification.KindSubscription, notification.KindMetaSubscription:
		subs, err := e.store.ListSubscribers(ctx, msg.Owner, v.Type, msg.Skip, msg.Take)
		if err != nil {
			return nil, err
		}
		targets := make([]target, 0, len(subs))
		for _, sub := range subs {
			targets = append(targets, e.entityTarget(ctx, sub.Subscriber, sub.Subscriber))
		}
		return targets, nil

	default:
		return nil, nil
	}
}

func (e *Engine) entityTarget(ctx context.Context, targetID, user string) target {
	endpoint, err := e.resolver.ResolveDeliveryEndpoint(ctx, targetID)
	return target{id: targetID, user: user, endpoint: endpoint, err: err}
}

func (e *Engine) appTarget(ctx context.Context, msg *notification.Message) target {
	appID := msg.AppID
	if appID.IsNil() {
		// Retry messages carry the app ID as the chain's target.
		parsed, err := id.ParseAppID(msg.TargetID)
		if err != nil {
			return target{id: msg.TargetID, err: err}
		}
		appID = parsed
	}

	a, err := e.store.GetApp(ctx, appID)
	if err != nil {
		return target{id: appID.String(), err: err}
	}
	return target{id: a.ID.String(), endpoint: a.NotificationURL}
}

// attempt performs one delivery exchange for one target and advances the
// chain's state machine. It returns the exchange result alongside an error;
// a non-nil error means the chain's next state could not be persisted and
// the message must not be acknowledged.
func (e *Engine) attempt(ctx context.Context, msg *notification.Message, v *post.Version, t target) (Result, error) {
	var result Result
	if t.err != nil {
		result = Result{Error: t.err.Error()}
	} else if err := e.limiter.Wait(ctx, hostOf(t.endpoint), e.config.TargetRatePerSec); err != nil {
		result = Result{Error: err.Error()}
	} else {
		sent := *msg
		sent.User = t.user
		result = e.sender.Send(ctx, t.endpoint, &sent, v)
	}

	// An attempt aborted by shutdown or lease cancellation is not a verdict
	// on the target. Leave the chain as is; lease expiry redelivers.
	if result.StatusCode == 0 && ctx.Err() != nil {
		return result, ctx.Err()
	}

	latencySeconds := float64(result.LatencyMs) / 1000.0

	switch e.retrier.Decide(result, msg.Retries) {
	case Delivered:
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("delivered", latencySeconds)
			e.config.Metrics.PendingDeliveries.Dec()
		}
		e.logger.DebugContext(ctx, "delivered",
			"notification_id", msg.ID, "target", t.id, "status", result.StatusCode, "latency_ms", result.LatencyMs)

	case Retry:
		if err := e.enqueueRetry(ctx, msg, t, result); err != nil {
			return result, err
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("retried", latencySeconds)
		}

	case Exhausted:
		if msg.FailureID.IsNil() {
			failed := *msg
			failed.TargetID = t.id
			failed.User = t.user
			if _, err := e.failures.Push(ctx, &failed, result.StatusCode, result.Reason()); err != nil {
				e.logger.ErrorContext(ctx, "record delivery failure", "notification_id", msg.ID, "error", err)
				return result, err
			}
			e.recordTerminalFailure()
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("failed", latencySeconds)
		}
	}
	return result, nil
}

// enqueueRetry continues the chain with an increased counter and a capped
// exponential invisibility delay, so the queue itself enforces the wait.
func (e *Engine) enqueueRetry(ctx context.Context, msg *notification.Message, t target, result Result) error {
	retry := &notification.Message{
		ID:         id.NewNotificationID(),
		Kind:       notification.KindRetry,
		Owner:      msg.Owner,
		User:       t.user,
		PostID:     msg.PostID,
		VersionID:  msg.VersionID,
		RetryKind:  msg.EffectiveKind(),
		TargetID:   t.id,
		FailureID:  msg.FailureID,
		Retries:    msg.Retries + 1,
		LastStatus: result.StatusCode,
		LastReason: result.Reason(),
	}

	delay := e.retrier.Delay(retry.Retries)
	if err := e.queues.Enqueue(ctx, retry, delay); err != nil {
		// Leave the original leased; lease expiry redelivers it.
		e.logger.ErrorContext(ctx, "enqueue retry",
			"notification_id", msg.ID, "target", t.id, "error", err)
		return err
	}

	e.logger.DebugContext(ctx, "retry scheduled",
		"notification_id", msg.ID, "target", t.id, "retries", retry.Retries, "delay", delay)
	return nil
}

// hostOf extracts the pacing key from a delivery endpoint URL. Unparseable
// endpoints fall back to the raw string, which still isolates them.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// ack deletes the leased message, the only acknowledgment the queue knows.
func (e *Engine) ack(ctx context.Context, q queue.Queue, leased *queue.Leased) {
	if err := q.Delete(ctx, leased); err != nil {
		e.logger.ErrorContext(ctx, "delete leased message",
			"notification_id", leased.Message.ID, "error", err)
	}
}
