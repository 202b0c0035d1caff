// Package subscription defines post subscriptions: a remote entity asking to
// be notified of an owner's posts matching a set of type patterns.
package subscription

import (
	"context"
	"strings"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
)

// Subscription registers a subscriber entity for an owner's posts.
type Subscription struct {
	entity.Entity

	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// Owner is the entity URI whose posts are subscribed to.
	Owner string `json:"owner"`

	// Subscriber is the entity URI receiving notifications.
	Subscriber string `json:"subscriber"`

	// PostTypes are patterns for post type matching. Empty means all types.
	PostTypes []string `json:"post_types,omitempty"`
}

// Matches reports whether the subscription covers the given post type.
func (s *Subscription) Matches(postType string) bool {
	if len(s.PostTypes) == 0 {
		return true
	}
	for _, pattern := range s.PostTypes {
		if Match(pattern, postType) {
			return true
		}
	}
	return false
}

// Match checks if a post type name matches a subscription pattern.
//
// Supported patterns:
//
//	"status.v0"  → exact match
//	"status.*"   → matches status.v0, status.v1, etc. (single segment wildcard)
//	"*"          → matches everything
func Match(pattern, postType string) bool {
	if pattern == "*" {
		return true
	}

	if pattern == postType {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	typeParts := strings.Split(postType, ".")

	if len(patternParts) != len(typeParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != typeParts[i] {
			return false
		}
	}

	return true
}

// Store defines the persistence contract for subscriptions.
type Store interface {
	// CreateSubscription persists a subscription.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// DeleteSubscription removes a subscription.
	DeleteSubscription(ctx context.Context, subID id.ID) error

	// ListSubscribers returns the subscriptions of owner matching postType,
	// in stable creation order, windowed by skip and take. A take of 0
	// returns nothing.
	ListSubscribers(ctx context.Context, owner, postType string, skip, take int) ([]*Subscription, error)

	// CountSubscribers returns how many subscriptions of owner match postType.
	CountSubscribers(ctx context.Context, owner, postType string) (int, error)
}
