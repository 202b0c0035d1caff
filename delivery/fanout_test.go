package delivery_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/delivery"
	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/notification"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/queue"
	qmemory "github.com/xraph/syndicate/queue/memory"
)

type fakeFanoutStore struct {
	subscribers int
	apps        []*app.App
}

func (s *fakeFanoutStore) CountSubscribers(_ context.Context, _, _ string) (int, error) {
	return s.subscribers, nil
}

func (s *fakeFanoutStore) ListAppsMatching(_ context.Context, _, _ string) ([]*app.App, error) {
	return s.apps, nil
}

func testVersion(postType string, mentions ...post.Mention) *post.Version {
	return &post.Version{
		Entity:      entity.New(),
		ID:          id.NewVersionID(),
		PostID:      id.NewPostID(),
		Owner:       "https://alice.example.com",
		Author:      "https://alice.example.com",
		Type:        postType,
		Content:     json.RawMessage(`{"text":"hi"}`),
		Mentions:    mentions,
		PublishedAt: time.Now().UTC(),
		ReceivedAt:  time.Now().UTC(),
	}
}

func drain(t *testing.T, q queue.Queue) []*notification.Message {
	t.Helper()
	var out []*notification.Message
	for {
		leased, err := q.Dequeue(context.Background(), time.Minute)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if leased == nil {
			return out
		}
		out = append(out, leased.Message)
	}
}

func TestOnPostWriteMentions(t *testing.T) {
	queues := qmemory.NewSet()
	f := delivery.NewFanout(queues, &fakeFanoutStore{}, 50, nil)

	v := testVersion("status.v0",
		post.Mention{Entity: "https://bob.example.com"},
		post.Mention{Entity: "https://carol.example.com"},
		post.Mention{Entity: "https://alice.example.com"}, // the author
		post.Mention{Entity: "https://bob.example.com"},   // duplicate
	)

	n, err := f.OnPostWrite(context.Background(), v)
	if err != nil {
		t.Fatalf("OnPostWrite() error = %v", err)
	}
	if n != 2 {
		t.Errorf("OnPostWrite() = %d messages, want 2", n)
	}

	msgs := drain(t, queues[notification.QueueMentions])
	if len(msgs) != 2 {
		t.Fatalf("mentions queue holds %d messages, want 2", len(msgs))
	}
	users := map[string]bool{}
	for _, m := range msgs {
		if m.Kind != notification.KindMention {
			t.Errorf("kind = %q, want mention", m.Kind)
		}
		if m.VersionID != v.ID || m.PostID != v.PostID {
			t.Errorf("message references %s/%s, want %s/%s", m.PostID, m.VersionID, v.PostID, v.ID)
		}
		users[m.User] = true
	}
	if users["https://alice.example.com"] {
		t.Error("author received a mention notification for their own post")
	}
	if !users["https://bob.example.com"] || !users["https://carol.example.com"] {
		t.Errorf("mentioned users = %v", users)
	}
}

func TestOnPostWriteSubscriberPages(t *testing.T) {
	queues := qmemory.NewSet()
	f := delivery.NewFanout(queues, &fakeFanoutStore{subscribers: 120}, 50, nil)

	if _, err := f.OnPostWrite(context.Background(), testVersion("status.v0")); err != nil {
		t.Fatalf("OnPostWrite() error = %v", err)
	}

	msgs := drain(t, queues[notification.QueueSubscriptions])
	if len(msgs) != 3 {
		t.Fatalf("subscriptions queue holds %d messages, want 3 pages", len(msgs))
	}

	wantPages := map[int]int{0: 50, 50: 50, 100: 20}
	for _, m := range msgs {
		if m.Kind != notification.KindSubscription {
			t.Errorf("kind = %q, want subscription", m.Kind)
		}
		want, ok := wantPages[m.Skip]
		if !ok {
			t.Errorf("unexpected page skip %d", m.Skip)
			continue
		}
		if m.Take != want {
			t.Errorf("page skip %d has take %d, want %d", m.Skip, m.Take, want)
		}
		delete(wantPages, m.Skip)
	}
	if len(wantPages) != 0 {
		t.Errorf("missing pages: %v", wantPages)
	}
}

func TestOnPostWriteMetaRoutesToMetaQueue(t *testing.T) {
	queues := qmemory.NewSet()
	f := delivery.NewFanout(queues, &fakeFanoutStore{subscribers: 10}, 50, nil)

	if _, err := f.OnPostWrite(context.Background(), testVersion("meta.profile")); err != nil {
		t.Fatalf("OnPostWrite() error = %v", err)
	}

	if msgs := drain(t, queues[notification.QueueSubscriptions]); len(msgs) != 0 {
		t.Errorf("subscriptions queue holds %d messages, want 0 for a meta post", len(msgs))
	}
	msgs := drain(t, queues[notification.QueueMetaSubscriptions])
	if len(msgs) != 1 {
		t.Fatalf("meta subscriptions queue holds %d messages, want 1", len(msgs))
	}
	if msgs[0].Kind != notification.KindMetaSubscription {
		t.Errorf("kind = %q, want meta_subscription", msgs[0].Kind)
	}
}

func TestOnPostWriteApps(t *testing.T) {
	a := &app.App{
		Entity:          entity.New(),
		ID:              id.NewAppID(),
		Owner:           "https://alice.example.com",
		Name:            "reader",
		NotificationURL: "https://reader.example.com/hook",
		PostTypes:       []string{"status.*"},
	}

	queues := qmemory.NewSet()
	f := delivery.NewFanout(queues, &fakeFanoutStore{apps: []*app.App{a}}, 50, nil)

	if _, err := f.OnPostWrite(context.Background(), testVersion("status.v0")); err != nil {
		t.Fatalf("OnPostWrite() error = %v", err)
	}

	msgs := drain(t, queues[notification.QueueAppNotifications])
	if len(msgs) != 1 {
		t.Fatalf("app notifications queue holds %d messages, want 1", len(msgs))
	}
	if msgs[0].AppID != a.ID {
		t.Errorf("AppID = %s, want %s", msgs[0].AppID, a.ID)
	}
}
