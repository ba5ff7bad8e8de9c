package authz

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	permdomain "authentico/internal/permission/domain"
	"authentico/internal/user/domain"
)

// PermissionStore is the slice of the permission repository the model backend reads.
type PermissionStore interface {
	UserPermissions(ctx context.Context, userID string) ([]permdomain.Permission, error)
	GroupPermissions(ctx context.Context, userID string) ([]permdomain.Permission, error)
}

type cachedPerms struct {
	user  Set
	group Set
	all   Set
}

// ModelBackend grants permissions stored as direct user grants or group grants.
// It answers global checks only; object checks get false. Inactive users hold nothing.
type ModelBackend struct {
	store PermissionStore
	cache *lru.LRU[string, *cachedPerms]
}

// NewModelBackend returns a backend reading store, caching up to size per-user
// permission sets for ttl.
func NewModelBackend(store PermissionStore, size int, ttl time.Duration) *ModelBackend {
	if size <= 0 {
		size = 1024
	}
	return &ModelBackend{
		store: store,
		cache: lru.NewLRU[string, *cachedPerms](size, nil, ttl),
	}
}

func (b *ModelBackend) Name() string { return "model" }

func (b *ModelBackend) HasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error) {
	if !user.IsActive || obj != nil {
		return false, nil
	}
	p, err := b.load(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return p.all.Has(perm), nil
}

func (b *ModelBackend) HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error) {
	if !user.IsActive {
		return false, nil
	}
	p, err := b.load(ctx, user.ID)
	if err != nil {
		return false, err
	}
	prefix := appLabel + "."
	for perm := range p.all {
		if strings.HasPrefix(perm, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (b *ModelBackend) GetAllPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error) {
	if !user.IsActive || obj != nil {
		return NewSet(), nil
	}
	p, err := b.load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return p.all.clone(), nil
}

func (b *ModelBackend) GetGroupPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error) {
	if !user.IsActive || obj != nil {
		return NewSet(), nil
	}
	p, err := b.load(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return p.group.clone(), nil
}

// Invalidate drops the cached permissions for userID. Call after changing the user's grants or groups.
func (b *ModelBackend) Invalidate(userID string) {
	b.cache.Remove(userID)
}

// Purge drops every cached entry. Call after changing a group's grants.
func (b *ModelBackend) Purge() {
	b.cache.Purge()
}

func (b *ModelBackend) load(ctx context.Context, userID string) (*cachedPerms, error) {
	if p, ok := b.cache.Get(userID); ok {
		return p, nil
	}
	direct, err := b.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	viaGroups, err := b.store.GroupPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &cachedPerms{user: NewSet(), group: NewSet(), all: NewSet()}
	for _, perm := range direct {
		p.user.Add(perm.String())
	}
	for _, perm := range viaGroups {
		p.group.Add(perm.String())
	}
	p.all.Union(p.user)
	p.all.Union(p.group)
	b.cache.Add(userID, p)
	return p, nil
}
