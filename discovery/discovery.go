// Package discovery resolves a remote entity URI to the server endpoint that
// accepts notifications for it.
package discovery

import (
	"context"
	"errors"
)

// ErrDiscoveryFailed is returned when an entity's delivery endpoint cannot
// be resolved. The delivery pipeline treats it as a transient failure.
var ErrDiscoveryFailed = errors.New("discovery: resolve failed")

// Resolver resolves delivery endpoints for remote entities.
type Resolver interface {
	// ResolveDeliveryEndpoint returns the URL notifications for entity
	// should be POSTed to.
	ResolveDeliveryEndpoint(ctx context.Context, entityURI string) (string, error)
}

// Static is a fixed entity→endpoint map. Tests and single-tenant setups use it.
type Static map[string]string

// ResolveDeliveryEndpoint implements Resolver.
func (s Static) ResolveDeliveryEndpoint(_ context.Context, entityURI string) (string, error) {
	endpoint, ok := s[entityURI]
	if !ok {
		return "", ErrDiscoveryFailed
	}
	return endpoint, nil
}
