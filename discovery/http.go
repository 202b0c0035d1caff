package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"
)

// ServerRel is the link relation advertised by federated servers for their
// notification endpoint.
const ServerRel = "https://syndicate.dev/rels/server"

var linkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

type cached struct {
	endpoint string
	expires  time.Time
}

// HTTPResolver discovers delivery endpoints by probing the entity URI for a
// Link header carrying ServerRel. Results are cached for a TTL so one
// resolution can serve a burst of deliveries to the same entity.
type HTTPResolver struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cached
}

// compile-time interface check.
var _ Resolver = (*HTTPResolver)(nil)

// NewHTTPResolver creates a resolver with the given probe timeout and cache TTL.
func NewHTTPResolver(timeout, ttl time.Duration) *HTTPResolver {
	return &HTTPResolver{
		client: &http.Client{Timeout: timeout},
		ttl:    ttl,
		cache:  make(map[string]cached),
	}
}

// ResolveDeliveryEndpoint implements Resolver.
func (r *HTTPResolver) ResolveDeliveryEndpoint(ctx context.Context, entityURI string) (string, error) {
	r.mu.RLock()
	if c, ok := r.cache[entityURI]; ok && time.Now().Before(c.expires) {
		r.mu.RUnlock()
		return c.endpoint, nil
	}
	r.mu.RUnlock()

	endpoint, err := r.probe(ctx, entityURI)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[entityURI] = cached{endpoint: endpoint, expires: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return endpoint, nil
}

// probe issues a HEAD request against the entity URI and extracts the server
// link relation. A GET fallback covers servers that drop Link headers on HEAD.
func (r *HTTPResolver) probe(ctx context.Context, entityURI string) (string, error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, entityURI, nil)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrDiscoveryFailed, entityURI, err)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrDiscoveryFailed, entityURI, err)
		}
		resp.Body.Close()

		for _, link := range resp.Header.Values("Link") {
			for _, m := range linkPattern.FindAllStringSubmatch(link, -1) {
				if m[2] != ServerRel {
					continue
				}
				endpoint, resolveErr := resolveRef(entityURI, m[1])
				if resolveErr != nil {
					continue
				}
				return endpoint, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s: no %s link", ErrDiscoveryFailed, entityURI, ServerRel)
}

// resolveRef resolves a possibly-relative link target against the entity URI.
func resolveRef(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
