// Package authz resolves permission checks for users by consulting an ordered list of
// permission backends. Superusers that are active pass every check without consulting backends.
package authz

import (
	"context"
	"errors"

	"authentico/internal/user/domain"
)

// ErrPermissionDenied may be returned by a backend that declines to answer a check.
// The resolver treats it as abstention and moves on to the next backend.
var ErrPermissionDenied = errors.New("authz: permission denied")

// Backend is a source of permission answers. Backends implement any subset of the
// capability interfaces below; a backend lacking a capability abstains from that check.
type Backend interface {
	Name() string
}

// Object identifies the target of an object-level check. A nil *Object means a global check.
type Object struct {
	Type       string
	ID         string
	Attributes map[string]any
}

// PermissionChecker answers single-permission checks.
type PermissionChecker interface {
	HasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error)
}

// ModulePermissionChecker reports whether the user holds any permission under an app label.
type ModulePermissionChecker interface {
	HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error)
}

// AllPermissionsProvider returns every permission the backend grants the user.
type AllPermissionsProvider interface {
	GetAllPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error)
}

// GroupPermissionsProvider returns the permissions the user holds through group membership.
type GroupPermissionsProvider interface {
	GetGroupPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error)
}
