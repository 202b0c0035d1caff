// Package redis provides a Redis-backed Queue implementation. Visibility is
// a sorted-set score: a message is due when its score is in the past, and
// leasing bumps the score forward by the visibility timeout so the sorted
// set itself enforces both delays and leases.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/queue"
)

// compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// claimScript atomically claims the next due message and extends its score
// by the visibility timeout.
// KEYS[1] = schedule sorted set
// ARGV[1] = current unix time (float seconds)
// ARGV[2] = visibility timeout in seconds
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then return false end
redis.call('ZADD', KEYS[1], tonumber(ARGV[1]) + tonumber(ARGV[2]), ids[1])
return ids[1]
`)

// Queue is a Redis-backed implementation of queue.Queue.
type Queue struct {
	rdb    goredis.UniversalClient
	name   notification.QueueName
	prefix string
}

// New creates a queue named after one of the logical queue names. Multiple
// processes sharing the same Redis and name consume from the same queue.
func New(rdb goredis.UniversalClient, name notification.QueueName) *Queue {
	return &Queue{
		rdb:    rdb,
		name:   name,
		prefix: "syn:q:" + string(name),
	}
}

// NewSet creates the full queue set over one Redis client.
func NewSet(rdb goredis.UniversalClient) queue.Set {
	set := make(queue.Set, len(queue.Names))
	for _, name := range queue.Names {
		set[name] = New(rdb, name)
	}
	return set
}

func (q *Queue) schedKey() string           { return q.prefix + ":sched" }
func (q *Queue) msgKey(msgID string) string { return q.prefix + ":msg:" + msgID }

func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Enqueue stores the payload and schedules its visibility.
func (q *Queue) Enqueue(ctx context.Context, msg *notification.Message, delay time.Duration) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue/redis: marshal message: %w", err)
	}

	msgID := msg.ID.String()
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.msgKey(msgID), raw, 0)
	pipe.ZAdd(ctx, q.schedKey(), goredis.Z{
		Score:  scoreFromTime(time.Now().UTC().Add(delay)),
		Member: msgID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue/redis: enqueue %s: %w", q.name, err)
	}
	return nil
}

// Dequeue claims the next due message under a lease.
func (q *Queue) Dequeue(ctx context.Context, visibility time.Duration) (*queue.Leased, error) {
	now := scoreFromTime(time.Now().UTC())
	res, err := claimScript.Run(ctx, q.rdb, []string{q.schedKey()}, now, visibility.Seconds()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: claim from %s: %w", q.name, err)
	}

	msgID, ok := res.(string)
	if !ok || msgID == "" {
		return nil, nil
	}

	raw, err := q.rdb.Get(ctx, q.msgKey(msgID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			// Payload gone but schedule entry survived; drop the orphan.
			q.rdb.ZRem(ctx, q.schedKey(), msgID)
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: load message %s: %w", msgID, err)
	}

	var msg notification.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("queue/redis: decode message %s: %w", msgID, err)
	}

	return &queue.Leased{Message: &msg, Receipt: msgID}, nil
}

// Delete acknowledges a leased message.
func (q *Queue) Delete(ctx context.Context, leased *queue.Leased) error {
	pipe := q.rdb.TxPipeline()
	removed := pipe.ZRem(ctx, q.schedKey(), leased.Receipt)
	pipe.Del(ctx, q.msgKey(leased.Receipt))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue/redis: delete %s: %w", leased.Receipt, err)
	}
	if removed.Val() == 0 {
		return queue.ErrUnknownReceipt
	}
	return nil
}

// Len returns the number of messages held, leased or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.schedKey()).Result()
}
