package hawk

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCredential() *Credential {
	return &Credential{
		ID:        "cred_test01",
		Key:       []byte("0123456789abcdef0123456789abcdef"),
		Algorithm: SHA256,
		Principal: "https://alice.example.com",
	}
}

type staticCredentialStore struct {
	creds map[string]*Credential
}

func (s *staticCredentialStore) CreateCredential(_ context.Context, cred *Credential) error {
	s.creds[cred.ID] = cred
	return nil
}

func (s *staticCredentialStore) GetCredential(_ context.Context, credID string) (*Credential, error) {
	cred, ok := s.creds[credID]
	if !ok {
		return nil, ErrUnknownCredential
	}
	return cred, nil
}

func (s *staticCredentialStore) DeleteCredential(_ context.Context, credID string) error {
	if _, ok := s.creds[credID]; !ok {
		return ErrUnknownCredential
	}
	delete(s.creds, credID)
	return nil
}

func newTestVerifier(t *testing.T, cred *Credential, at time.Time) *Verifier {
	t.Helper()
	store := &staticCredentialStore{creds: map[string]*Credential{cred.ID: cred}}
	nonces := NewNonceCache(2 * DefaultSkew)
	nonces.SetClock(func() time.Time { return at })
	v := NewVerifier(store, nonces, DefaultSkew)
	v.SetClock(func() time.Time { return at })
	return v
}

func testRequestContext(at time.Time) RequestContext {
	return RequestContext{
		Method:    "POST",
		Host:      "bob.example.com",
		Port:      443,
		Resource:  "/notifications",
		Timestamp: at,
		Nonce:     "a1b2c3d4e5f60718",
		Hash:      PayloadHash("application/json", []byte(`{"kind":"mention"}`)),
	}
}

func TestSignDeterministic(t *testing.T) {
	cred := testCredential()
	rc := testRequestContext(time.Unix(1700000000, 0))

	first := Sign(cred, rc)
	second := Sign(cred, rc)
	if first != second {
		t.Errorf("Sign() not deterministic: %q vs %q", first, second)
	}
	if first == "" {
		t.Error("Sign() returned empty MAC")
	}
}

func TestSignNormalizesCase(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)

	rc := testRequestContext(at)
	lower := Sign(cred, rc)

	rc.Method = "post"
	rc.Host = "BOB.Example.COM"
	mixed := Sign(cred, rc)

	if lower != mixed {
		t.Errorf("method/host case changed the MAC: %q vs %q", lower, mixed)
	}
}

func TestSignBindsEveryField(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	base := Sign(cred, testRequestContext(at))

	mutations := map[string]func(*RequestContext){
		"method":    func(rc *RequestContext) { rc.Method = "GET" },
		"host":      func(rc *RequestContext) { rc.Host = "eve.example.com" },
		"port":      func(rc *RequestContext) { rc.Port = 8443 },
		"resource":  func(rc *RequestContext) { rc.Resource = "/other" },
		"timestamp": func(rc *RequestContext) { rc.Timestamp = at.Add(time.Second) },
		"nonce":     func(rc *RequestContext) { rc.Nonce = "ffffffffffffffff" },
		"hash":      func(rc *RequestContext) { rc.Hash = PayloadHash("application/json", []byte(`{}`)) },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			rc := testRequestContext(at)
			mutate(&rc)
			if Sign(cred, rc) == base {
				t.Errorf("changing %s did not change the MAC", name)
			}
		})
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)

	rc := testRequestContext(at)
	mac := Sign(cred, rc)

	got, err := v.Verify(context.Background(), rc, mac, cred.ID)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.Principal != cred.Principal {
		t.Errorf("Verify() principal = %q, want %q", got.Principal, cred.Principal)
	}
}

func TestVerifyUnknownCredential(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)

	rc := testRequestContext(at)
	mac := Sign(cred, rc)

	if _, err := v.Verify(context.Background(), rc, mac, "cred_missing"); !errors.Is(err, ErrUnknownCredential) {
		t.Errorf("Verify() error = %v, want ErrUnknownCredential", err)
	}
}

func TestVerifyBadMAC(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)

	rc := testRequestContext(at)

	if _, err := v.Verify(context.Background(), rc, "bm9wZQ==", cred.ID); !errors.Is(err, ErrBadMAC) {
		t.Errorf("Verify() error = %v, want ErrBadMAC", err)
	}
}

func TestVerifySkew(t *testing.T) {
	cred := testCredential()
	now := time.Unix(1700000000, 0)

	cases := []struct {
		name    string
		drift   time.Duration
		wantErr error
	}{
		{"in window past", -30 * time.Second, nil},
		{"in window future", 30 * time.Second, nil},
		{"at boundary", -DefaultSkew, nil},
		{"too old", -DefaultSkew - time.Second, ErrStaleTimestamp},
		{"too new", DefaultSkew + time.Second, ErrStaleTimestamp},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, cred, now)
			rc := testRequestContext(now.Add(tt.drift))
			mac := Sign(cred, rc)

			_, err := v.Verify(context.Background(), rc, mac, cred.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyStaleRejectedEvenWithValidMAC(t *testing.T) {
	cred := testCredential()
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, now)

	rc := testRequestContext(now.Add(-10 * time.Minute))
	mac := Sign(cred, rc) // perfectly valid MAC over a stale timestamp

	if _, err := v.Verify(context.Background(), rc, mac, cred.ID); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("Verify() error = %v, want ErrStaleTimestamp", err)
	}
}

func TestVerifyReplay(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)

	rc := testRequestContext(at)
	mac := Sign(cred, rc)

	if _, err := v.Verify(context.Background(), rc, mac, cred.ID); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if _, err := v.Verify(context.Background(), rc, mac, cred.ID); !errors.Is(err, ErrReplayed) {
		t.Errorf("second Verify() error = %v, want ErrReplayed", err)
	}
}

func TestVerifyBadMACDoesNotPoisonNonceCache(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)

	rc := testRequestContext(at)
	mac := Sign(cred, rc)

	// A forged request with the same nonce must not burn it.
	if _, err := v.Verify(context.Background(), rc, "Zm9yZ2Vk", cred.ID); !errors.Is(err, ErrBadMAC) {
		t.Fatalf("forged Verify() error = %v, want ErrBadMAC", err)
	}
	if _, err := v.Verify(context.Background(), rc, mac, cred.ID); err != nil {
		t.Errorf("legitimate Verify() after forgery error = %v", err)
	}
}

func TestNonceCacheDistinctTriples(t *testing.T) {
	at := time.Unix(1700000000, 0)
	c := NewNonceCache(2 * DefaultSkew)
	c.SetClock(func() time.Time { return at })

	if c.Seen("cred_a", "nonce1", at) {
		t.Error("fresh triple reported as seen")
	}
	if !c.Seen("cred_a", "nonce1", at) {
		t.Error("repeated triple not reported as seen")
	}

	// Different credential, nonce, or timestamp are distinct triples.
	if c.Seen("cred_b", "nonce1", at) {
		t.Error("different credential reported as seen")
	}
	if c.Seen("cred_a", "nonce2", at) {
		t.Error("different nonce reported as seen")
	}
	if c.Seen("cred_a", "nonce1", at.Add(time.Second)) {
		t.Error("different timestamp reported as seen")
	}
}

func TestNonceCacheSweep(t *testing.T) {
	window := 2 * time.Minute
	now := time.Unix(1700000000, 0)

	c := NewNonceCache(window)
	c.SetClock(func() time.Time { return now })
	c.Seen("cred_a", "old", now)

	// Advance beyond the window; the next insert sweeps the old entry.
	now = now.Add(window + time.Second)
	c.Seen("cred_a", "new", now)

	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d after sweep, want 1", got)
	}
}

func TestBewitRoundTrip(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)
	ctx := context.Background()

	token, err := v.IssueBewit(ctx, cred.ID, "/posts/post_01h455vb4p", time.Minute)
	if err != nil {
		t.Fatalf("IssueBewit() error = %v", err)
	}

	got, err := v.VerifyBewit(ctx, token, "/posts/post_01h455vb4p")
	if err != nil {
		t.Fatalf("VerifyBewit() error = %v", err)
	}
	if got.ID != cred.ID {
		t.Errorf("VerifyBewit() credential = %q, want %q", got.ID, cred.ID)
	}
}

func TestBewitWrongResource(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)
	ctx := context.Background()

	token, err := v.IssueBewit(ctx, cred.ID, "/posts/post_a", time.Minute)
	if err != nil {
		t.Fatalf("IssueBewit() error = %v", err)
	}

	if _, err := v.VerifyBewit(ctx, token, "/posts/post_b"); !errors.Is(err, ErrBadMAC) {
		t.Errorf("VerifyBewit() error = %v, want ErrBadMAC", err)
	}
}

func TestBewitExpiry(t *testing.T) {
	cred := testCredential()
	issuedAt := time.Unix(1700000000, 0)
	store := &staticCredentialStore{creds: map[string]*Credential{cred.ID: cred}}
	nonces := NewNonceCache(2 * DefaultSkew)
	v := NewVerifier(store, nonces, DefaultSkew)

	clock := issuedAt
	v.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	token, err := v.IssueBewit(ctx, cred.ID, "/feed", time.Minute)
	if err != nil {
		t.Fatalf("IssueBewit() error = %v", err)
	}

	// Valid at the expiry second itself.
	clock = issuedAt.Add(time.Minute)
	if _, err := v.VerifyBewit(ctx, token, "/feed"); err != nil {
		t.Errorf("VerifyBewit() at expiry error = %v", err)
	}

	// Expired one second later.
	clock = issuedAt.Add(time.Minute + time.Second)
	if _, err := v.VerifyBewit(ctx, token, "/feed"); !errors.Is(err, ErrExpired) {
		t.Errorf("VerifyBewit() after expiry error = %v, want ErrExpired", err)
	}
}

func TestBewitMalformed(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	v := newTestVerifier(t, cred, at)
	ctx := context.Background()

	for _, token := range []string{"", "!!!not-base64!!!", "bm9zZXBhcmF0b3Jz", "YVxi"} {
		if _, err := v.VerifyBewit(ctx, token, "/feed"); !errors.Is(err, ErrMalformedBewit) {
			t.Errorf("VerifyBewit(%q) error = %v, want ErrMalformedBewit", token, err)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	cred := testCredential()
	at := time.Unix(1700000000, 0)
	rc := testRequestContext(at)
	mac := Sign(cred, rc)

	value := BuildHeader(cred.ID, rc, mac)
	h, err := ParseHeader(value)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}

	if h.ID != cred.ID {
		t.Errorf("ID = %q, want %q", h.ID, cred.ID)
	}
	if !h.Timestamp.Equal(rc.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", h.Timestamp, rc.Timestamp)
	}
	if h.Nonce != rc.Nonce {
		t.Errorf("Nonce = %q, want %q", h.Nonce, rc.Nonce)
	}
	if h.Hash != rc.Hash {
		t.Errorf("Hash = %q, want %q", h.Hash, rc.Hash)
	}
	if h.MAC != mac {
		t.Errorf("MAC = %q, want %q", h.MAC, mac)
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	cases := []string{
		"",
		"Bearer abc",
		`Hawk id="x"`, // missing ts, nonce, mac
		`Hawk id="x", ts="nan", nonce="n", mac="m"`,
	}
	for _, value := range cases {
		if _, err := ParseHeader(value); !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("ParseHeader(%q) error = %v, want ErrMalformedHeader", value, err)
		}
	}
}
