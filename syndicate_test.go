package syndicate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/syndicate"
	"github.com/xraph/syndicate/discovery"
	"github.com/xraph/syndicate/feed"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
	qmemory "github.com/xraph/syndicate/queue/memory"
	smemory "github.com/xraph/syndicate/store/memory"
)

const (
	owner = "https://alice.example.com"
	bob   = "https://bob.example.com"
	carol = "https://carol.example.com"
)

func serverCredential() *hawk.Credential {
	return &hawk.Credential{
		Entity:    entity.New(),
		ID:        "cred_server",
		Key:       []byte("0123456789abcdef0123456789abcdef"),
		Algorithm: hawk.SHA256,
		Principal: owner,
	}
}

func newSyndicate(t *testing.T, opts ...syndicate.Option) (*syndicate.Syndicate, *smemory.Store, queue.Set) {
	t.Helper()

	store := smemory.New()
	queues := qmemory.NewSet()
	ix, err := feed.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("feed.Open() error = %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	opts = append([]syndicate.Option{
		syndicate.WithStore(store),
		syndicate.WithQueues(queues),
		syndicate.WithFeedIndex(ix),
		syndicate.WithServerCredential(serverCredential()),
	}, opts...)

	s, err := syndicate.New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, store, queues
}

func TestNewValidation(t *testing.T) {
	store := smemory.New()
	queues := qmemory.NewSet()
	ix, err := feed.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("feed.Open() error = %v", err)
	}
	defer ix.Close()
	cred := serverCredential()

	tests := []struct {
		name    string
		opts    []syndicate.Option
		wantErr error
	}{
		{
			"missing store",
			[]syndicate.Option{syndicate.WithQueues(queues), syndicate.WithFeedIndex(ix), syndicate.WithServerCredential(cred)},
			syndicate.ErrNoStore,
		},
		{
			"missing queues",
			[]syndicate.Option{syndicate.WithStore(store), syndicate.WithFeedIndex(ix), syndicate.WithServerCredential(cred)},
			syndicate.ErrNoQueues,
		},
		{
			"missing feed index",
			[]syndicate.Option{syndicate.WithStore(store), syndicate.WithQueues(queues), syndicate.WithServerCredential(cred)},
			syndicate.ErrNoFeedIndex,
		},
		{
			"missing server credential",
			[]syndicate.Option{syndicate.WithStore(store), syndicate.WithQueues(queues), syndicate.WithFeedIndex(ix)},
			syndicate.ErrNoServerCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := syndicate.New(tt.opts...); !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishValidatesContent(t *testing.T) {
	s, _, _ := newSyndicate(t)
	ctx := context.Background()

	schema := map[string]any{
		"type":     "object",
		"required": []any{"text"},
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	}
	if _, err := s.RegisterPostType(ctx, post.TypeDef{Name: "status.v0", Schema: schema}); err != nil {
		t.Fatalf("RegisterPostType() error = %v", err)
	}

	_, err := s.Publish(ctx, &post.Post{
		Owner:   owner,
		Type:    "status.v0",
		Content: json.RawMessage(`{"body": 42}`),
	})
	if !errors.Is(err, syndicate.ErrContentValidationFailed) {
		t.Errorf("Publish() invalid content error = %v, want ErrContentValidationFailed", err)
	}

	v, err := s.Publish(ctx, &post.Post{
		Owner:   owner,
		Type:    "status.v0",
		Content: json.RawMessage(`{"text": "hello"}`),
	})
	if err != nil {
		t.Fatalf("Publish() valid content error = %v", err)
	}
	if v.Type != "status.v0" || v.PostID.IsNil() {
		t.Errorf("Publish() version = %+v", v)
	}
}

func TestPublishUnregisteredTypeAccepted(t *testing.T) {
	s, store, _ := newSyndicate(t)
	ctx := context.Background()

	v, err := s.Publish(ctx, &post.Post{
		Owner:   owner,
		Type:    "recipe.v7",
		Content: json.RawMessage(`{"dish": "soup"}`),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, err := store.GetVersion(ctx, owner, v.PostID, v.ID)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if got.Type != "recipe.v7" {
		t.Errorf("stored version type = %q", got.Type)
	}
}

func TestPublishFansOutAndIndexes(t *testing.T) {
	s, _, queues := newSyndicate(t)
	ctx := context.Background()

	v, err := s.Publish(ctx, &post.Post{
		Owner:   owner,
		Type:    "status.v0",
		Content: json.RawMessage(`{"text": "hi"}`),
		Mentions: []post.Mention{
			{Entity: bob},
			{Entity: carol},
			{Entity: owner}, // self mention is not delivered
		},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	mq := queues[notification.QueueMentions].(*qmemory.Queue)
	if got := mq.Len(); got != 2 {
		t.Errorf("mention queue has %d messages, want 2", got)
	}

	entry, err := s.Feed().Get(ctx, owner, v.PostID)
	if err != nil {
		t.Fatalf("Feed().Get() error = %v", err)
	}
	if entry.Version != v.ID {
		t.Errorf("feed entry version = %s, want %s", entry.Version, v.ID)
	}

	entries, err := s.Feed().Query(ctx, owner, feed.Dims{Type: "status.v0", Mention: bob}, feed.Range{})
	if err != nil {
		t.Fatalf("Feed().Query() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Version != v.ID {
		t.Errorf("Feed().Query(type, mention) = %+v, want the published version", entries)
	}
}

func TestCreateCredentialAndBewit(t *testing.T) {
	s, _, _ := newSyndicate(t)
	ctx := context.Background()

	cred, err := s.CreateCredential(ctx, bob)
	if err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	if cred.ID == "" || len(cred.Key) == 0 {
		t.Fatalf("CreateCredential() = %+v, want populated id and key", cred)
	}

	token, err := s.IssueBewit(ctx, cred.ID, "/posts/"+id.NewPostID().String(), time.Minute)
	if err != nil {
		t.Fatalf("IssueBewit() error = %v", err)
	}

	if _, err := s.Verifier().VerifyBewit(ctx, token, "/posts/other"); !errors.Is(err, hawk.ErrBadMAC) {
		t.Errorf("VerifyBewit() wrong resource error = %v, want ErrBadMAC", err)
	}
}

func TestEndToEndDelivery(t *testing.T) {
	var delivered atomic.Int32
	var authorized atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		if r.Header.Get("Authorization") != "" {
			authorized.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	s, store, queues := newSyndicate(t,
		syndicate.WithResolver(discovery.Static{bob: ts.URL}),
		syndicate.WithPollInterval(10*time.Millisecond),
		syndicate.WithConcurrency(2),
	)
	ctx := context.Background()

	s.Start(ctx)
	defer s.Stop(ctx)

	if _, err := s.Publish(ctx, &post.Post{
		Owner:    owner,
		Type:     "status.v0",
		Content:  json.RawMessage(`{"text": "hi"}`),
		Mentions: []post.Mention{{Entity: bob}},
	}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if delivered.Load() >= 1 && queues[notification.QueueMentions].(*qmemory.Queue).Len() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := delivered.Load(); got != 1 {
		t.Fatalf("delivered %d requests, want 1", got)
	}
	if got := authorized.Load(); got != 1 {
		t.Errorf("%d requests carried an Authorization header, want 1", got)
	}

	count, err := store.CountFailures(ctx)
	if err != nil {
		t.Fatalf("CountFailures() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountFailures() = %d, want 0", count)
	}
}
