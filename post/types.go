package post

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/syndicate/internal/entity"
)

// MetaTypePrefix marks profile/meta post types. Writes of these types
// additionally fan out to meta subscribers.
const MetaTypePrefix = "meta"

// TypeDef declares a post type and its optional content schema.
type TypeDef struct {
	// Name is the dot-separated post type name (e.g. "status.v0").
	Name string `json:"name"`

	// Schema is an optional JSON Schema the content must satisfy.
	Schema any `json:"schema,omitempty"`
}

// Type is a registered post type definition.
type Type struct {
	entity.Entity

	Definition TypeDef `json:"definition"`
}

// IsMeta reports whether a post type is a meta/profile type.
func IsMeta(postType string) bool {
	return postType == MetaTypePrefix || strings.HasPrefix(postType, MetaTypePrefix+".")
}

// TypeStore defines the persistence contract for post type definitions.
type TypeStore interface {
	// RegisterPostType creates or updates a post type definition (upsert by name).
	RegisterPostType(ctx context.Context, t *Type) error

	// GetPostType returns a post type by name.
	GetPostType(ctx context.Context, name string) (*Type, error)
}

// Registry is the in-memory cached service over registered post types.
type Registry struct {
	store    TypeStore
	cache    map[string]*Type
	cacheTTL time.Duration
	lastLoad time.Time
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates a Registry backed by the given store. A zero cacheTTL
// disables caching.
func NewRegistry(store TypeStore, cacheTTL time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		cache:    make(map[string]*Type),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Register registers or updates a post type definition.
func (r *Registry) Register(ctx context.Context, def TypeDef) (*Type, error) {
	t := &Type{
		Entity:     entity.New(),
		Definition: def,
	}
	if err := r.store.RegisterPostType(ctx, t); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[def.Name] = t
	r.mu.Unlock()

	return t, nil
}

// Get returns a post type by name, using the cache when available.
func (r *Registry) Get(ctx context.Context, name string) (*Type, error) {
	r.mu.RLock()
	if t, ok := r.cache[name]; ok && !r.cacheExpired() {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	t, err := r.store.GetPostType(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = t
	r.lastLoad = time.Now()
	r.mu.Unlock()

	return t, nil
}

func (r *Registry) cacheExpired() bool {
	if r.cacheTTL <= 0 {
		return true
	}
	return time.Since(r.lastLoad) > r.cacheTTL
}
