// Package ratelimit paces outbound deliveries per target host so one slow
// or large fan-out does not hammer a single remote server.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements token bucket pacing keyed by target host.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
	perSec   float64
}

// New creates a new per-host limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether a delivery to host may proceed now.
// A perSec of 0 means unlimited.
func (l *Limiter) Allow(host string, perSec int) bool {
	if perSec <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreateBucket(host, float64(perSec))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the host's bucket allows the delivery or the context is
// cancelled. A perSec of 0 returns immediately.
func (l *Limiter) Wait(ctx context.Context, host string, perSec int) error {
	if perSec <= 0 {
		return nil
	}

	for {
		if l.Allow(host, perSec) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(float64(time.Second) / float64(perSec))):
			// Try again after one token interval.
		}
	}
}

// Reset clears the pacing state for a host.
func (l *Limiter) Reset(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, host)
}

func (l *Limiter) getOrCreateBucket(host string, perSec float64) *bucket {
	b, ok := l.buckets[host]
	if !ok {
		b = &bucket{
			tokens:   perSec, // start full
			lastFill: time.Now(),
			perSec:   perSec,
		}
		l.buckets[host] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.perSec
	if b.tokens > b.perSec {
		b.tokens = b.perSec // cap at burst size = rate
	}
	b.lastFill = now
}
