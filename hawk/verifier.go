package hawk

import (
	"context"
	"crypto/hmac"
	"time"
)

// DefaultSkew is the default clock skew tolerance between signer and verifier.
const DefaultSkew = 60 * time.Second

// Verifier checks inbound request MACs and bewit tokens against stored
// credentials. Aside from the nonce cache it holds no per-request state;
// every rejection is terminal and mutates nothing.
type Verifier struct {
	credentials CredentialStore
	nonces      *NonceCache
	skew        time.Duration
	now         func() time.Time
}

// NewVerifier creates a verifier over the given credential store.
// A zero skew falls back to DefaultSkew.
func NewVerifier(credentials CredentialStore, nonces *NonceCache, skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Verifier{
		credentials: credentials,
		nonces:      nonces,
		skew:        skew,
		now:         time.Now,
	}
}

// SetClock replaces the verifier's clock for deterministic tests.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Verify checks a signed request and returns the resolved credential for the
// caller to authorize.
//
// Check order: credential lookup, timestamp skew, MAC, nonce replay. The
// skew check runs before (and therefore regardless of) MAC validity so a
// correct MAC cannot extend the replay window. The nonce is recorded only
// after the MAC validates, so unauthenticated traffic cannot poison the cache.
func (v *Verifier) Verify(ctx context.Context, rc RequestContext, providedMAC, credentialID string) (*Credential, error) {
	cred, err := v.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return nil, ErrUnknownCredential
	}

	now := v.now()
	age := now.Sub(rc.Timestamp)
	if age > v.skew || age < -v.skew {
		return nil, ErrStaleTimestamp
	}

	expected := Sign(cred, rc)
	if !hmac.Equal([]byte(expected), []byte(providedMAC)) {
		return nil, ErrBadMAC
	}

	if v.nonces.Seen(cred.ID, rc.Nonce, rc.Timestamp) {
		return nil, ErrReplayed
	}

	return cred, nil
}

// IssueBewit creates a bewit token granting access to resource until now+ttl.
func (v *Verifier) IssueBewit(ctx context.Context, credentialID, resource string, ttl time.Duration) (string, error) {
	cred, err := v.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		return "", ErrUnknownCredential
	}

	expiry := v.now().Add(ttl).Unix()
	return encodeBewit(cred.ID, expiry, signBewit(cred, expiry, resource)), nil
}

// VerifyBewit checks a bewit token against the resource it was issued for
// and returns the resolved credential.
func (v *Verifier) VerifyBewit(ctx context.Context, token, resource string) (*Credential, error) {
	credID, expiry, mac, err := decodeBewit(token)
	if err != nil {
		return nil, err
	}

	cred, lookupErr := v.credentials.GetCredential(ctx, credID)
	if lookupErr != nil {
		return nil, ErrUnknownCredential
	}

	if v.now().Unix() > expiry {
		return nil, ErrExpired
	}

	expected := signBewit(cred, expiry, resource)
	if !hmac.Equal([]byte(expected), []byte(mac)) {
		return nil, ErrBadMAC
	}

	return cred, nil
}
