// Package profile resolves the deprecated site-specific user profile through a typed registry.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// Default bounds of the per-user profile cache.
const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 5 * time.Minute
)

// ErrProfileNotAvailable is returned when the site does not provide user profiles.
var ErrProfileNotAvailable = errors.New("profile: site profile not available")

// Loader loads the profile belonging to a user. Errors other than ErrProfileNotAvailable
// (for example a missing profile row) are returned to the caller unchanged.
type Loader interface {
	LoadProfile(ctx context.Context, userID string) (any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, userID string) (any, error)

func (f LoaderFunc) LoadProfile(ctx context.Context, userID string) (any, error) {
	return f(ctx, userID)
}

// Registry maps "app_label.ModelName" keys to loaders and caches loaded profiles per user.
// The cache is bounded in size and entries expire, so a long-running process picks up changes.
type Registry struct {
	key string
	log logrus.FieldLogger

	mu      sync.Mutex
	loaders map[string]Loader
	cache   *lru.LRU[string, any]
	warned  sync.Once
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	size int
	ttl  time.Duration
}

// WithCache bounds the profile cache to size entries kept for ttl. Non-positive values keep the defaults.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *registryOptions) {
		if size > 0 {
			o.size = size
		}
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewRegistry returns a registry resolving profiles through the loader registered under key
// (AUTH_PROFILE_MODULE). An empty key disables profiles.
func NewRegistry(key string, log logrus.FieldLogger, opts ...Option) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := registryOptions{size: DefaultCacheSize, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		key:     strings.TrimSpace(key),
		log:     log,
		loaders: make(map[string]Loader),
		cache:   lru.NewLRU[string, any](o.size, nil, o.ttl),
	}
}

// Register installs l under key, replacing any previous loader.
func (r *Registry) Register(key string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[key] = l
}

// Get returns the profile for userID, loading it on first use.
func (r *Registry) Get(ctx context.Context, userID string) (any, error) {
	r.warned.Do(func() {
		r.log.Warn("profile: AUTH_PROFILE_MODULE profiles are deprecated")
	})

	if p, ok := r.cache.Get(userID); ok {
		return p, nil
	}
	r.mu.Lock()
	loader, err := r.resolve()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p, err := loader.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(userID, p)
	return p, nil
}

// Forget drops the cached profile for userID.
func (r *Registry) Forget(userID string) {
	r.cache.Remove(userID)
}

// resolve must be called with mu held.
func (r *Registry) resolve() (Loader, error) {
	if r.key == "" {
		return nil, fmt.Errorf("%w: set AUTH_PROFILE_MODULE to enable profiles", ErrProfileNotAvailable)
	}
	parts := strings.Split(r.key, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: AUTH_PROFILE_MODULE %q must be app_label.ModelName", ErrProfileNotAvailable, r.key)
	}
	l, ok := r.loaders[r.key]
	if !ok {
		return nil, fmt.Errorf("%w: no profile loader registered for %q", ErrProfileNotAvailable, r.key)
	}
	return l, nil
}
