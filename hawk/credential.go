// Package hawk implements MAC-based request authentication for federated
// post delivery: per-request signatures with timestamp and nonce replay
// protection, plus short-lived bewit capability tokens for header-less GETs.
package hawk

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/xraph/syndicate/internal/entity"
)

// Rejection reasons. All are terminal for the request being verified;
// the caller must re-sign with a fresh timestamp and nonce.
var (
	// ErrUnknownCredential is returned when no credential exists for the ID.
	ErrUnknownCredential = errors.New("hawk: unknown credential")

	// ErrBadMAC is returned when the provided MAC does not match.
	ErrBadMAC = errors.New("hawk: bad mac")

	// ErrStaleTimestamp is returned when the request timestamp is outside the skew tolerance.
	ErrStaleTimestamp = errors.New("hawk: stale timestamp")

	// ErrReplayed is returned when a (credential, nonce, timestamp) triple is seen twice.
	ErrReplayed = errors.New("hawk: replayed request")

	// ErrExpired is returned when a bewit token is verified after its expiry.
	ErrExpired = errors.New("hawk: bewit expired")

	// ErrMalformedBewit is returned when a bewit token cannot be decoded.
	ErrMalformedBewit = errors.New("hawk: malformed bewit")

	// ErrMalformedHeader is returned when an authorization header cannot be parsed.
	ErrMalformedHeader = errors.New("hawk: malformed authorization header")
)

// Algorithm names the keyed-hash algorithm declared on a credential.
type Algorithm string

// Supported MAC algorithms.
const (
	SHA256 Algorithm = "sha256"
)

// Credential pairs an identifier with a symmetric signing key. It verifies
// inbound signatures and signs outbound requests on behalf of the local server.
type Credential struct {
	entity.Entity

	// ID identifies this credential on the wire.
	ID string `json:"id"`

	// Key is the shared symmetric signing key. Never serialized.
	Key []byte `json:"-"`

	// Algorithm is the declared keyed-hash algorithm.
	Algorithm Algorithm `json:"algorithm"`

	// Principal is the entity URI this credential authenticates as.
	Principal string `json:"principal"`
}

// hashFunc returns the hash constructor for the credential's algorithm.
// Unrecognized algorithms fall back to SHA-256.
func (c *Credential) hashFunc() func() hash.Hash {
	switch c.Algorithm {
	case SHA256:
		return sha256.New
	default:
		return sha256.New
	}
}

// GenerateKey creates a cryptographically random 256-bit signing key.
func GenerateKey() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("hawk: failed to generate random key: " + err.Error())
	}
	return b
}

// NewNonce creates a random nonce for a single signed request.
func NewNonce() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("hawk: failed to generate nonce: " + err.Error())
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}

// CredentialStore defines the persistence contract for signing credentials.
type CredentialStore interface {
	// CreateCredential persists a credential. Must be durable before returning.
	CreateCredential(ctx context.Context, cred *Credential) error

	// GetCredential returns a credential by ID, or ErrUnknownCredential.
	GetCredential(ctx context.Context, credID string) (*Credential, error)

	// DeleteCredential revokes a credential.
	DeleteCredential(ctx context.Context, credID string) error
}
