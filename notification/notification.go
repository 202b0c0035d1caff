// Package notification defines the typed messages exchanged between the
// fan-out step and the delivery workers.
package notification

import (
	"github.com/xraph/syndicate/id"
)

// Kind tags the closed set of notification message variants. Delivery
// workers dispatch on it.
type Kind string

// Message variants.
const (
	KindMention          Kind = "mention"
	KindSubscription     Kind = "subscription"
	KindAppNotification  Kind = "app"
	KindMetaSubscription Kind = "meta_subscription"
	KindRetry            Kind = "retry"
)

// QueueName identifies one of the five logical delivery queues.
type QueueName string

// Logical queue names.
const (
	QueueMentions          QueueName = "mentions"
	QueueSubscriptions     QueueName = "subscriptions"
	QueueAppNotifications  QueueName = "app_notifications"
	QueueMetaSubscriptions QueueName = "meta_subscriptions"
	QueueRetries           QueueName = "retries"
)

// QueueFor maps a message kind to the queue that carries it.
func QueueFor(kind Kind) QueueName {
	switch kind {
	case KindMention:
		return QueueMentions
	case KindSubscription:
		return QueueSubscriptions
	case KindAppNotification:
		return QueueAppNotifications
	case KindMetaSubscription:
		return QueueMetaSubscriptions
	case KindRetry:
		return QueueRetries
	default:
		return QueueRetries
	}
}

// Message is a notification owned by the queue that holds it between enqueue
// and acknowledged processing. Delivery is at-least-once: a message may be
// processed more than once, so handlers must be idempotent with respect to
// Identity().
type Message struct {
	// ID is the unique TypeID for this message.
	ID id.ID `json:"id"`

	// Kind is the variant tag.
	Kind Kind `json:"kind"`

	// Owner is the entity URI whose server produced the post.
	Owner string `json:"owner"`

	// User is the subject user entity URI (mentioned user, subscriber, ...).
	User string `json:"user,omitempty"`

	// PostID references the post that triggered the notification.
	PostID id.ID `json:"post_id"`

	// VersionID references the post version that triggered the notification.
	VersionID id.ID `json:"version_id"`

	// Skip and Take bound one page of a subscription fan-out. Only set on
	// KindSubscription.
	Skip int `json:"skip,omitempty"`
	Take int `json:"take,omitempty"`

	// AppID references the registered application. Only set on
	// KindAppNotification.
	AppID id.ID `json:"app_id,omitempty"`

	// RetryKind records which variant failed. Only set on KindRetry.
	RetryKind Kind `json:"retry_kind,omitempty"`

	// TargetID identifies the delivery destination of the failed attempt
	// (entity URI or app ID string). Only set on KindRetry.
	TargetID string `json:"target_id,omitempty"`

	// FailureID links the retry chain to its delivery failure record. Nil
	// until a failure record exists for this chain.
	FailureID id.ID `json:"failure_id,omitempty"`

	// Retries counts prior failed attempts for this chain.
	Retries int `json:"retries,omitempty"`

	// LastStatus and LastReason carry the outcome of the attempt that
	// produced this retry, so exhaustion can record what was observed.
	LastStatus int    `json:"last_status,omitempty"`
	LastReason string `json:"last_reason,omitempty"`
}

// Identity returns the tuple delivery handlers must be idempotent over.
func (m *Message) Identity() string {
	target := m.TargetID
	if target == "" {
		target = m.User
	}
	return m.Owner + "|" + m.PostID.String() + "|" + m.VersionID.String() + "|" + target
}

// EffectiveKind returns the variant being delivered: the original variant
// for a retry message, the tag itself otherwise.
func (m *Message) EffectiveKind() Kind {
	if m.Kind == KindRetry {
		return m.RetryKind
	}
	return m.Kind
}
