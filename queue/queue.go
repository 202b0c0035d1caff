// Package queue defines the transport contract between fan-out producers and
// delivery workers. The queue is the sole coordination primitive: producers
// and consumers share no in-process state.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/syndicate/notification"
)

// ErrUnknownReceipt is returned when deleting a lease the queue no longer holds.
var ErrUnknownReceipt = errors.New("queue: unknown receipt")

// Leased is a dequeued message held under a visibility timeout. Until Delete
// is called with it, the message is hidden from other consumers; if the lease
// expires first, the message reappears.
type Leased struct {
	Message *notification.Message

	// Receipt identifies this lease for deletion. Opaque to callers.
	Receipt string
}

// Queue is a single logical delivery queue with at-least-once semantics.
type Queue interface {
	// Enqueue makes a message visible after the given delay. A zero delay
	// means immediately visible.
	Enqueue(ctx context.Context, msg *notification.Message, delay time.Duration) error

	// Dequeue leases the next visible message for the given visibility
	// timeout. Returns (nil, nil) when no message is visible.
	Dequeue(ctx context.Context, visibility time.Duration) (*Leased, error)

	// Delete acknowledges a leased message, removing it permanently.
	// Deletion is the only acknowledgment.
	Delete(ctx context.Context, leased *Leased) error
}

// Set bundles the five logical queues. Messages route by kind via
// notification.QueueFor.
type Set map[notification.QueueName]Queue

// Names lists the five logical queues in a fixed polling order.
var Names = []notification.QueueName{
	notification.QueueMentions,
	notification.QueueSubscriptions,
	notification.QueueAppNotifications,
	notification.QueueMetaSubscriptions,
	notification.QueueRetries,
}

// Enqueue routes a message to its queue by kind.
func (s Set) Enqueue(ctx context.Context, msg *notification.Message, delay time.Duration) error {
	q, ok := s[notification.QueueFor(msg.Kind)]
	if !ok {
		return errors.New("queue: no queue for kind " + string(msg.Kind))
	}
	return q.Enqueue(ctx, msg, delay)
}
