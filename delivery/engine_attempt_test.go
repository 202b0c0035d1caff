package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
	qmemory "github.com/xraph/syndicate/queue/memory"
)

type pushRecorder struct {
	pushes int
}

func (p *pushRecorder) Push(_ context.Context, _ *notification.Message, _ int, _ string) (*failure.Record, error) {
	p.pushes++
	return &failure.Record{}, nil
}

func attemptEngine(pusher FailurePusher, maxRetries int) (*Engine, queue.Set) {
	queues := qmemory.NewSet()
	cfg := EngineConfig{
		RequestTimeout: time.Second,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  10 * time.Millisecond,
		MaxRetries:     maxRetries,
		Credential: &hawk.Credential{
			Entity:    entity.New(),
			ID:        "cred_attempt",
			Key:       hawk.GenerateKey(),
			Algorithm: hawk.SHA256,
			Principal: "https://alice.example.com",
		},
	}
	return NewEngine(nil, queues, nil, pusher, cfg, nil), queues
}

func attemptMessage() *notification.Message {
	return &notification.Message{
		ID:        id.NewNotificationID(),
		Kind:      notification.KindMention,
		Owner:     "https://alice.example.com",
		User:      "https://bob.example.com",
		PostID:    id.NewPostID(),
		VersionID: id.NewVersionID(),
	}
}

func TestAttemptReturnsExchangeResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pusher := &pushRecorder{}
	eng, queues := attemptEngine(pusher, 3)

	result, err := eng.attempt(context.Background(), attemptMessage(), &post.Version{},
		target{id: "https://bob.example.com", user: "https://bob.example.com", endpoint: srv.URL})
	if err != nil {
		t.Fatalf("attempt() error = %v", err)
	}
	if result.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("result status = %d, want 503", result.StatusCode)
	}
	if got := queues[notification.QueueRetries].(*qmemory.Queue).Len(); got != 1 {
		t.Errorf("retries enqueued = %d, want 1", got)
	}
}

func TestAttemptCancelledContextKeepsChain(t *testing.T) {
	pusher := &pushRecorder{}
	eng, queues := attemptEngine(pusher, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A send aborted by cancellation is not a verdict on the target: the
	// chain must advance neither to a retry nor to a failure record.
	_, err := eng.attempt(ctx, attemptMessage(), &post.Version{},
		target{id: "https://bob.example.com", user: "https://bob.example.com", endpoint: "http://127.0.0.1:0/notify"})
	if err == nil {
		t.Fatal("attempt() under a cancelled context should report the chain as unsettled")
	}
	if pusher.pushes != 0 {
		t.Errorf("failure records pushed = %d, want 0", pusher.pushes)
	}
	if got := queues[notification.QueueRetries].(*qmemory.Queue).Len(); got != 0 {
		t.Errorf("retries enqueued = %d, want 0", got)
	}
}
