// Package service manages permission and group grants.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"authentico/internal/permission/domain"
	"authentico/internal/permission/repository"
	userdomain "authentico/internal/user/domain"
)

// CacheInvalidator drops cached permission sets after grants change. Satisfied by *authz.ModelBackend.
type CacheInvalidator interface {
	Invalidate(userID string)
	Purge()
}

// Grants creates permissions and groups on demand and records grants.
type Grants struct {
	repo  repository.Repository
	cache CacheInvalidator
	log   logrus.FieldLogger
}

// NewGrants returns a Grants over repo. cache may be nil when no caching backend is configured.
func NewGrants(repo repository.Repository, cache CacheInvalidator, log logrus.FieldLogger) *Grants {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Grants{repo: repo, cache: cache, log: log}
}

// GrantToUser grants perm ("app_label.codename") directly to the user, creating the permission if needed.
func (g *Grants) GrantToUser(ctx context.Context, userID, perm string) (*domain.Permission, error) {
	p, err := g.ensurePermission(ctx, perm)
	if err != nil {
		return nil, err
	}
	if err := g.repo.GrantUserPermission(ctx, userID, p.ID); err != nil {
		return nil, fmt.Errorf("grant %s: %w", p, err)
	}
	if g.cache != nil {
		g.cache.Invalidate(userID)
	}
	g.log.WithFields(logrus.Fields{"user_id": userID, "perm": p.String()}).Info("permissions: granted to user")
	return p, nil
}

// GrantToGroup grants perm to the named group, creating the group and permission if needed.
// Purges the whole permission cache.
func (g *Grants) GrantToGroup(ctx context.Context, groupName, perm string) (*domain.Permission, error) {
	grp, err := g.ensureGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	p, err := g.ensurePermission(ctx, perm)
	if err != nil {
		return nil, err
	}
	if err := g.repo.GrantGroupPermission(ctx, grp.ID, p.ID); err != nil {
		return nil, fmt.Errorf("grant %s to group %s: %w", p, grp.Name, err)
	}
	if g.cache != nil {
		g.cache.Purge()
	}
	g.log.WithFields(logrus.Fields{"group": grp.Name, "perm": p.String()}).Info("permissions: granted to group")
	return p, nil
}

// AddToGroup makes the user a member of the named group, creating the group if needed.
func (g *Grants) AddToGroup(ctx context.Context, userID, groupName string) (*domain.Group, error) {
	grp, err := g.ensureGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	if err := g.repo.AddUserToGroup(ctx, userID, grp.ID); err != nil {
		return nil, fmt.Errorf("add to group %s: %w", grp.Name, err)
	}
	if g.cache != nil {
		g.cache.Invalidate(userID)
	}
	return grp, nil
}

func (g *Grants) ensurePermission(ctx context.Context, perm string) (*domain.Permission, error) {
	app, code, err := domain.ParsePermission(perm)
	if err != nil {
		return nil, err
	}
	p, err := g.repo.GetPermission(ctx, app, code)
	if err != nil {
		return nil, fmt.Errorf("lookup permission: %w", err)
	}
	if p != nil {
		return p, nil
	}
	p = &domain.Permission{
		ID:       userdomain.NewID(),
		AppLabel: app,
		Codename: code,
		Name:     "Can " + strings.ReplaceAll(code, "_", " "),
	}
	if err := g.repo.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return p, nil
}

func (g *Grants) ensureGroup(ctx context.Context, name string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	grp, err := g.repo.GetGroupByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup group: %w", err)
	}
	if grp != nil {
		return grp, nil
	}
	grp = &domain.Group{ID: userdomain.NewID(), Name: name}
	if err := g.repo.CreateGroup(ctx, grp); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return grp, nil
}
