package delivery

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	r := NewRetrier(5*time.Second, 2*time.Hour, 3)

	tests := []struct {
		name    string
		res     Result
		retries int
		want    Decision
	}{
		{"200 delivered", Result{StatusCode: 200}, 0, Delivered},
		{"204 delivered", Result{StatusCode: 204}, 2, Delivered},
		{"500 retries", Result{StatusCode: 500}, 0, Retry},
		{"503 retries", Result{StatusCode: 503}, 2, Retry},
		{"transport error retries", Result{Error: "connection refused"}, 1, Retry},
		{"4xx retries too", Result{StatusCode: 404}, 0, Retry},
		{"budget spent", Result{StatusCode: 503}, 3, Exhausted},
		{"over budget", Result{Error: "timeout"}, 5, Exhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Decide(tt.res, tt.retries); got != tt.want {
				t.Errorf("Decide(%+v, %d) = %v, want %v", tt.res, tt.retries, got, tt.want)
			}
		})
	}
}

func TestDelayExponentialCapped(t *testing.T) {
	r := NewRetrier(5*time.Second, 2*time.Minute, 10)

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 2 * time.Minute}, // 160s capped
		{6, 2 * time.Minute},
		{100, 2 * time.Minute},
	}

	for _, tt := range tests {
		if got := r.Delay(tt.retries); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}

func TestDelayMonotone(t *testing.T) {
	r := NewRetrier(time.Second, time.Hour, 20)

	prev := time.Duration(0)
	for i := 0; i <= 64; i++ {
		d := r.Delay(i)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", i, d, prev)
		}
		if d > time.Hour {
			t.Fatalf("Delay(%d) = %v exceeds cap", i, d)
		}
		prev = d
	}
}

func TestDelayNegativeRetriesClamped(t *testing.T) {
	r := NewRetrier(5*time.Second, time.Minute, 3)
	if got := r.Delay(-1); got != 5*time.Second {
		t.Errorf("Delay(-1) = %v, want base delay", got)
	}
}

func TestResultReason(t *testing.T) {
	if got := (Result{Error: "dial tcp: timeout"}).Reason(); got != "dial tcp: timeout" {
		t.Errorf("Reason() = %q", got)
	}
	if got := (Result{StatusCode: 503}).Reason(); got != "http status 503" {
		t.Errorf("Reason() = %q", got)
	}
}
