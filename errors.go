package syndicate

import "errors"

// Sentinel errors returned by syndicate operations.
var (
	// ErrNoStore is returned when a Syndicate is created without a store.
	ErrNoStore = errors.New("syndicate: store is required")

	// ErrNoQueues is returned when a Syndicate is created without queues.
	ErrNoQueues = errors.New("syndicate: queues are required")

	// ErrNoFeedIndex is returned when a Syndicate is created without a feed index.
	ErrNoFeedIndex = errors.New("syndicate: feed index is required")

	// ErrNoServerCredential is returned when a Syndicate is created without
	// the credential it signs outbound deliveries with.
	ErrNoServerCredential = errors.New("syndicate: server credential is required")

	// ErrPostNotFound is returned when a post cannot be found.
	ErrPostNotFound = errors.New("syndicate: post not found")

	// ErrVersionNotFound is returned when a post version cannot be found.
	ErrVersionNotFound = errors.New("syndicate: post version not found")

	// ErrPostTypeNotFound is returned when a post type is not registered.
	ErrPostTypeNotFound = errors.New("syndicate: post type not found")

	// ErrContentValidationFailed is returned when post content fails JSON
	// Schema validation against its registered type.
	ErrContentValidationFailed = errors.New("syndicate: content validation failed")

	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = errors.New("syndicate: subscription not found")

	// ErrAppNotFound is returned when an app registration cannot be found.
	ErrAppNotFound = errors.New("syndicate: app not found")

	// ErrFailureNotFound is returned when a delivery failure record cannot be found.
	ErrFailureNotFound = errors.New("syndicate: failure record not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("syndicate: store is closed")
)
