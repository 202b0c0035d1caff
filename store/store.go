// Package store defines the composite Store interface for all syndicate
// persistence.
//
// Each subsystem defines its own store interface next to its types, and the
// aggregate Store composes them all. Backends implement the aggregate once
// and every service sees only the slice it needs.
package store

import (
	"context"

	"github.com/xraph/syndicate/app"
	"github.com/xraph/syndicate/failure"
	"github.com/xraph/syndicate/hawk"
	"github.com/xraph/syndicate/post"
	"github.com/xraph/syndicate/subscription"
)

// Store is the aggregate persistence interface.
type Store interface {
	hawk.CredentialStore
	post.Store
	post.TypeStore
	subscription.Store
	app.Store
	failure.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
