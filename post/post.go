// Package post defines the post and post-version documents a server stores
// for its users, and the registry of post types with content schemas.
package post

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/internal/entity"
)

// Mention references another entity (and optionally one of its posts) from
// a post's content.
type Mention struct {
	// Entity is the mentioned user's entity URI.
	Entity string `json:"entity"`

	// PostID optionally narrows the mention to a specific post.
	PostID id.ID `json:"post,omitempty"`
}

// Post is a user-authored post stored by the owner's server.
type Post struct {
	entity.Entity

	// ID is the unique TypeID for this post.
	ID id.ID `json:"id"`

	// Owner is the entity URI whose server stores this post.
	Owner string `json:"owner"`

	// Author is the entity URI that authored the post. Usually equal to
	// Owner; differs for posts received from remote servers.
	Author string `json:"author"`

	// Type is the dot-separated post type name (e.g. "status.v0").
	Type string `json:"type"`

	// Content is the post payload. Validated against the registered type
	// schema, if any.
	Content json.RawMessage `json:"content"`

	// Mentions are the entities referenced by the content.
	Mentions []Mention `json:"mentions,omitempty"`

	// Following reports whether the owner follows the author at write time.
	// False for self-authored posts.
	Following bool `json:"following,omitempty"`

	// PublishedAt is the author-declared publish time.
	PublishedAt time.Time `json:"published_at"`
}

// Version is one immutable revision of a post. It is the source document
// every feed index entry is derived from.
type Version struct {
	entity.Entity

	// ID is the unique TypeID for this version.
	ID id.ID `json:"id"`

	// PostID references the post this version belongs to.
	PostID id.ID `json:"post_id"`

	// Owner is the entity URI whose server stores this version.
	Owner string `json:"owner"`

	// Author is the entity URI that authored the version.
	Author string `json:"author"`

	// Type is the post type at this version.
	Type string `json:"type"`

	// Content is the payload snapshot at this version.
	Content json.RawMessage `json:"content"`

	// Mentions are the entities referenced at this version.
	Mentions []Mention `json:"mentions,omitempty"`

	// Following reports whether the owner follows the author at write time.
	// It feeds the feed index's following dimension.
	Following bool `json:"following"`

	// PublishedAt is the author-declared publish time.
	PublishedAt time.Time `json:"published_at"`

	// ReceivedAt is when this server stored the version.
	ReceivedAt time.Time `json:"received_at"`
}

// Store defines the persistence contract for posts and their versions.
// PutVersion must be atomic per (owner, post, version) key.
type Store interface {
	// CreatePost persists a post. Must be durable before returning.
	CreatePost(ctx context.Context, p *Post) error

	// GetPost returns a post by owner and ID.
	GetPost(ctx context.Context, owner string, postID id.ID) (*Post, error)

	// PutVersion persists one post version document.
	PutVersion(ctx context.Context, v *Version) error

	// GetVersion returns a version by its (owner, post, version) key.
	GetVersion(ctx context.Context, owner string, postID, versionID id.ID) (*Version, error)

	// ListVersions returns all versions of a post, newest first.
	ListVersions(ctx context.Context, owner string, postID id.ID) ([]*Version, error)
}
