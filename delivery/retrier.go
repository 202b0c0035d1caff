package delivery

import "time"

// Retrier decides what to do after a delivery attempt and computes the
// backoff delay for the chain's next retry.
type Retrier struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
}

// NewRetrier creates a retrier with capped exponential backoff.
func NewRetrier(baseDelay, maxDelay time.Duration, maxRetries int) *Retrier {
	return &Retrier{
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		maxRetries: maxRetries,
	}
}

// MaxRetries returns the configured retry budget.
func (r *Retrier) MaxRetries() int {
	return r.maxRetries
}

// Decide determines what to do with a chain after an attempt.
//
//   - 2xx → Delivered
//   - anything else (including transport errors) with budget remaining → Retry
//   - anything else with the budget spent → Exhausted
//
// A non-2xx status never short-circuits to Exhausted early: the chain always
// gets its full budget, because transient and permanent remote failures are
// indistinguishable across federation boundaries.
func (r *Retrier) Decide(res Result, retries int) Decision {
	if res.OK() {
		return Delivered
	}
	if retries >= r.maxRetries {
		return Exhausted
	}
	return Retry
}

// Delay computes the invisibility delay for a retry message:
// min(maxDelay, baseDelay * 2^retries). Monotonically non-decreasing in
// retries and capped, so the queue itself enforces the wait.
func (r *Retrier) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}

	delay := r.baseDelay
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= r.maxDelay || delay <= 0 { // <= 0 guards overflow
			return r.maxDelay
		}
	}
	if delay > r.maxDelay {
		return r.maxDelay
	}
	return delay
}
