package hawk

import (
	"strconv"
	"sync"
	"time"
)

// NonceCache is a time-windowed concurrent set of seen
// (credential, nonce, timestamp) triples. Entries older than the window are
// irrelevant because the verifier already rejects their timestamps as stale,
// so the cache only needs to hold the skew window's worth of nonces.
//
// Construct one per process and share it across verifiers; there is no
// implicit singleton.
type NonceCache struct {
	mu        sync.Mutex
	window    time.Duration
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewNonceCache creates a cache retaining entries for the given window.
// The window should be at least twice the verifier's skew tolerance.
func NewNonceCache(window time.Duration) *NonceCache {
	return &NonceCache{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetClock replaces the cache's clock. Tests use this to make expiry
// deterministic.
func (c *NonceCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Seen atomically checks and records a triple. It reports true when the
// identical triple was already recorded within the window.
func (c *NonceCache) Seen(credID, nonce string, ts time.Time) bool {
	key := credID + "\x00" + nonce + "\x00" + strconv.FormatInt(ts.Unix(), 10)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if _, ok := c.seen[key]; ok {
		return true
	}
	c.seen[key] = now
	return false
}

// Len returns the number of retained entries.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// sweepLocked drops entries older than the window. Runs at most once per
// half-window so inserts stay O(1) amortized.
func (c *NonceCache) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.window/2 {
		return
	}
	c.lastSweep = now

	cutoff := now.Add(-c.window)
	for key, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, key)
		}
	}
}
