// Package memory provides an in-memory Queue implementation for unit testing
// and single-process deployments.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/queue"
)

// compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

type item struct {
	msg         *notification.Message
	visibleAt   time.Time
	receipt     string
	leaseExpiry time.Time // zero when not leased
}

// Queue is an in-memory implementation of queue.Queue with lease semantics.
type Queue struct {
	mu    sync.Mutex
	items []*item
	seq   int64
	now   func() time.Time
}

// New creates an empty in-memory queue.
func New() *Queue {
	return &Queue{now: time.Now}
}

// NewSet creates a full in-memory queue set, one queue per logical name.
func NewSet() queue.Set {
	set := make(queue.Set, len(queue.Names))
	for _, name := range queue.Names {
		set[name] = New()
	}
	return set
}

// SetClock replaces the queue's clock for deterministic tests.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue makes a copy-by-reference of msg visible after delay.
func (q *Queue) Enqueue(_ context.Context, msg *notification.Message, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.items = append(q.items, &item{
		msg:       msg,
		visibleAt: q.now().Add(delay),
		receipt:   strconv.FormatInt(q.seq, 10),
	})
	return nil
}

// Dequeue leases the oldest visible message. Expired leases make their
// messages visible again, which is how a crashed consumer's work reappears.
func (q *Queue) Dequeue(_ context.Context, visibility time.Duration) (*queue.Leased, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, it := range q.items {
		if it.visibleAt.After(now) {
			continue
		}
		if !it.leaseExpiry.IsZero() && it.leaseExpiry.After(now) {
			continue
		}

		it.leaseExpiry = now.Add(visibility)
		return &queue.Leased{Message: it.msg, Receipt: it.receipt}, nil
	}
	return nil, nil
}

// Delete acknowledges a leased message.
func (q *Queue) Delete(_ context.Context, leased *queue.Leased) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.receipt == leased.Receipt {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return queue.ErrUnknownReceipt
}

// Len returns the number of messages held, leased or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
