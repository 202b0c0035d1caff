// Package app defines applications registered against a user's server that
// receive post notifications matching their declared type filters.
package app

import (
	"context"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
	"github.com/xraph/syndicate/subscription"
)

// App is a registered application.
type App struct {
	entity.Entity

	// ID is the unique TypeID for this app.
	ID id.ID `json:"id"`

	// Owner is the entity URI the app is registered with.
	Owner string `json:"owner"`

	// Name is the human-readable app name.
	Name string `json:"name"`

	// URL is the app's homepage.
	URL string `json:"url,omitempty"`

	// NotificationURL receives signed post notifications.
	NotificationURL string `json:"notification_url"`

	// PostTypes are patterns filtering which post types the app is notified
	// about. Empty means none.
	PostTypes []string `json:"post_types,omitempty"`
}

// Matches reports whether the app's filter covers the given post type.
func (a *App) Matches(postType string) bool {
	for _, pattern := range a.PostTypes {
		if subscription.Match(pattern, postType) {
			return true
		}
	}
	return false
}

// Store defines the persistence contract for registered apps.
type Store interface {
	// CreateApp persists an app registration.
	CreateApp(ctx context.Context, a *App) error

	// GetApp returns an app by ID.
	GetApp(ctx context.Context, appID id.ID) (*App, error)

	// DeleteApp removes an app registration.
	DeleteApp(ctx context.Context, appID id.ID) error

	// ListAppsMatching returns the owner's apps whose filter matches postType.
	ListAppsMatching(ctx context.Context, owner, postType string) ([]*App, error)
}
