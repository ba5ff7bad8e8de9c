package repository

import (
	"context"

	"authentico/internal/permission/domain"
)

// Repository defines persistence for permissions, groups, and their grants.
type Repository interface {
	// UserPermissions returns permissions granted directly to the user.
	UserPermissions(ctx context.Context, userID string) ([]domain.Permission, error)
	// GroupPermissions returns permissions granted through the user's groups.
	GroupPermissions(ctx context.Context, userID string) ([]domain.Permission, error)
	// UserGroups returns the groups the user belongs to.
	UserGroups(ctx context.Context, userID string) ([]domain.Group, error)

	GetPermission(ctx context.Context, appLabel, codename string) (*domain.Permission, error)
	CreatePermission(ctx context.Context, p *domain.Permission) error
	GetGroupByName(ctx context.Context, name string) (*domain.Group, error)
	CreateGroup(ctx context.Context, g *domain.Group) error
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	GrantUserPermission(ctx context.Context, userID, permissionID string) error
	GrantGroupPermission(ctx context.Context, groupID, permissionID string) error
}
