package service

import (
	"context"
	"errors"
	"testing"

	"authentico/internal/logging"
	"authentico/internal/permission/domain"
)

// memPermRepo is an in-memory permission repository.
type memPermRepo struct {
	perms      map[string]*domain.Permission
	groups     map[string]*domain.Group
	userPerms  map[string]map[string]bool
	groupPerms map[string]map[string]bool
	members    map[string]map[string]bool
	grantErr   error
}

func newMemPermRepo() *memPermRepo {
	return &memPermRepo{
		perms:      map[string]*domain.Permission{},
		groups:     map[string]*domain.Group{},
		userPerms:  map[string]map[string]bool{},
		groupPerms: map[string]map[string]bool{},
		members:    map[string]map[string]bool{},
	}
}

func add(m map[string]map[string]bool, k, v string) {
	if m[k] == nil {
		m[k] = map[string]bool{}
	}
	m[k][v] = true
}

func (m *memPermRepo) UserPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	var out []domain.Permission
	for _, p := range m.perms {
		if m.userPerms[userID][p.ID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPermRepo) GroupPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	var out []domain.Permission
	for gid := range m.members[userID] {
		for _, p := range m.perms {
			if m.groupPerms[gid][p.ID] {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (m *memPermRepo) UserGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	var out []domain.Group
	for _, g := range m.groups {
		if m.members[userID][g.ID] {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memPermRepo) GetPermission(ctx context.Context, appLabel, codename string) (*domain.Permission, error) {
	return m.perms[appLabel+"."+codename], nil
}

func (m *memPermRepo) CreatePermission(ctx context.Context, p *domain.Permission) error {
	m.perms[p.String()] = p
	return nil
}

func (m *memPermRepo) GetGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	return m.groups[name], nil
}

func (m *memPermRepo) CreateGroup(ctx context.Context, g *domain.Group) error {
	m.groups[g.Name] = g
	return nil
}

func (m *memPermRepo) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	add(m.members, userID, groupID)
	return nil
}

func (m *memPermRepo) GrantUserPermission(ctx context.Context, userID, permissionID string) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	add(m.userPerms, userID, permissionID)
	return nil
}

func (m *memPermRepo) GrantGroupPermission(ctx context.Context, groupID, permissionID string) error {
	if m.grantErr != nil {
		return m.grantErr
	}
	add(m.groupPerms, groupID, permissionID)
	return nil
}

// recordingCache records invalidations.
type recordingCache struct {
	invalidated []string
	purges      int
}

func (c *recordingCache) Invalidate(userID string) { c.invalidated = append(c.invalidated, userID) }
func (c *recordingCache) Purge()                   { c.purges++ }

func TestGrantToUser(t *testing.T) {
	repo := newMemPermRepo()
	cache := &recordingCache{}
	g := NewGrants(repo, cache, logging.Discard())
	ctx := context.Background()

	p, err := g.GrantToUser(ctx, "u1", "blog.change_post")
	if err != nil {
		t.Fatalf("GrantToUser: %v", err)
	}
	if p.String() != "blog.change_post" || p.Name != "Can change post" {
		t.Errorf("permission = %+v", p)
	}
	again, err := g.GrantToUser(ctx, "u2", "blog.change_post")
	if err != nil {
		t.Fatalf("GrantToUser again: %v", err)
	}
	if again.ID != p.ID {
		t.Error("existing permission should be reused")
	}
	perms, _ := repo.UserPermissions(ctx, "u1")
	if len(perms) != 1 || perms[0].ID != p.ID {
		t.Errorf("u1 permissions = %v", perms)
	}
	if len(cache.invalidated) != 2 || cache.invalidated[0] != "u1" {
		t.Errorf("invalidated = %v", cache.invalidated)
	}
}

func TestGrantToUser_Errors(t *testing.T) {
	repo := newMemPermRepo()
	g := NewGrants(repo, nil, logging.Discard())

	if _, err := g.GrantToUser(context.Background(), "u1", "nodot"); err == nil {
		t.Error("malformed permission should fail")
	}
	repo.grantErr = errors.New("db down")
	if _, err := g.GrantToUser(context.Background(), "u1", "blog.view_post"); !errors.Is(err, repo.grantErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}

func TestGroupGrants(t *testing.T) {
	repo := newMemPermRepo()
	cache := &recordingCache{}
	g := NewGrants(repo, cache, logging.Discard())
	ctx := context.Background()

	if _, err := g.GrantToGroup(ctx, "editors", "blog.change_post"); err != nil {
		t.Fatalf("GrantToGroup: %v", err)
	}
	if cache.purges != 1 {
		t.Errorf("purges = %d, want 1", cache.purges)
	}
	grp, err := g.AddToGroup(ctx, "u1", " editors ")
	if err != nil {
		t.Fatalf("AddToGroup: %v", err)
	}
	if grp.Name != "editors" || len(repo.groups) != 1 {
		t.Errorf("group = %+v, groups = %d", grp, len(repo.groups))
	}
	perms, _ := repo.GroupPermissions(ctx, "u1")
	if len(perms) != 1 || perms[0].String() != "blog.change_post" {
		t.Errorf("group permissions = %v", perms)
	}
	if _, err := g.AddToGroup(ctx, "u1", "  "); err == nil {
		t.Error("empty group name should fail")
	}
}
