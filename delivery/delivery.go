// Package delivery implements the asynchronous fan-out and retry pipeline:
// post writes enqueue typed notification messages, workers dequeue them,
// sign and send HTTP notifications, and failed chains retry with capped
// exponential backoff until the budget is exhausted.
package delivery

import "strconv"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt succeeded (2xx).
	Delivered Decision = iota

	// Retry means a retry message should be enqueued for the chain.
	Retry

	// Exhausted means the retry budget is spent and a terminal failure
	// record should be written.
	Exhausted
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// OK reports whether the attempt succeeded.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Reason renders the failure for a terminal record: the transport error when
// there was no HTTP exchange, the status line otherwise.
func (r Result) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	return "http status " + strconv.Itoa(r.StatusCode)
}
