// Package syndicate provides federated social post delivery for Go.
//
// Syndicate is a library, not a service. Import it into your server to get
// authenticated post syndication between entities: MAC-signed requests with
// replay protection, bewit capability tokens for link sharing, queued
// fan-out of mention/subscription/app notifications with retry and terminal
// failure records, and a multi-dimension feed index for timeline queries.
//
// Key features:
//   - Per-request MAC authentication with timestamp, nonce, and payload hash
//   - Short-lived bewit tokens for header-less authenticated GETs
//   - Queue-backed delivery pipeline with capped exponential retry
//   - Durable failure records once a retry budget is exhausted
//   - Pebble-backed feed index queryable by type, follow state, and mention
//   - Pluggable store and queue backends (memory, Redis)
//
// Quick start:
//
//	ix, err := feed.Open(dir, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := syndicate.New(
//	    syndicate.WithStore(memory.New()),
//	    syndicate.WithQueues(qmemory.NewSet()),
//	    syndicate.WithFeedIndex(ix),
//	    syndicate.WithServerCredential(cred),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s.Start(ctx)
//	defer s.Stop(ctx)
//
//	v, err := s.Publish(ctx, &post.Post{
//	    Owner:   "https://alice.example.com",
//	    Type:    "status.v0",
//	    Content: json.RawMessage(`{"text": "hello"}`),
//	})
package syndicate
