package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authentico/internal/authz"
	"authentico/internal/user/domain"
)

// UserGetter loads the acting user. Used by the Require helpers to resolve the caller.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// PermissionChecker is satisfied by *authz.Resolver.
type PermissionChecker interface {
	HasPerm(ctx context.Context, user *domain.User, perm string, obj *authz.Object) (bool, error)
	HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error)
}

// RequireActiveUser ensures the context carries the ID of an existing, active user.
// Returns a gRPC error (Unauthenticated or Internal) on failure.
func RequireActiveUser(ctx context.Context, users UserGetter) (*domain.User, error) {
	userID, ok := GetUserID(ctx)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user context required")
	}
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to resolve user")
	}
	if u == nil || !u.IsActive {
		return nil, status.Error(codes.Unauthenticated, "unknown or inactive user")
	}
	return u, nil
}

// RequireStaff ensures the caller is an active staff user.
// Returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
func RequireStaff(ctx context.Context, users UserGetter) (*domain.User, error) {
	u, err := RequireActiveUser(ctx, users)
	if err != nil {
		return nil, err
	}
	if !u.IsStaff {
		return nil, status.Error(codes.PermissionDenied, "staff status required")
	}
	return u, nil
}

// RequireModulePerms ensures the caller is active staff holding some permission under appLabel.
func RequireModulePerms(ctx context.Context, users UserGetter, checker PermissionChecker, appLabel string) (*domain.User, error) {
	u, err := RequireStaff(ctx, users)
	if err != nil {
		return nil, err
	}
	ok, err := checker.HasModulePerms(ctx, u, appLabel)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to resolve permissions")
	}
	if !ok {
		return nil, status.Errorf(codes.PermissionDenied, "no permissions for %s", appLabel)
	}
	return u, nil
}

// RequirePerm ensures the caller is active and holds perm, on obj when non-nil.
func RequirePerm(ctx context.Context, users UserGetter, checker PermissionChecker, perm string, obj *authz.Object) (*domain.User, error) {
	u, err := RequireActiveUser(ctx, users)
	if err != nil {
		return nil, err
	}
	ok, err := checker.HasPerm(ctx, u, perm, obj)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to resolve permissions")
	}
	if !ok {
		return nil, status.Errorf(codes.PermissionDenied, "permission %s required", perm)
	}
	return u, nil
}
