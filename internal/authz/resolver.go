package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	telemetry "authentico/internal/telemetry/otel"
	"authentico/internal/user/domain"
)

const instrumentationName = "authentico/authz"

// Resolver answers permission questions by consulting backends in registration order.
type Resolver struct {
	backends []Backend
	log      logrus.FieldLogger
	checks   metric.Int64Counter
}

// NewResolver returns a resolver over backends. Checks are a logical OR; order only decides
// which backend is asked first.
func NewResolver(log logrus.FieldLogger, backends ...Backend) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Resolver{backends: backends, log: log}
	checks, err := otel.Meter(instrumentationName).Int64Counter(
		"authz.checks",
		metric.WithDescription("Permission resolutions by operation and result"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		log.WithError(err).Warn("authz: checks counter unavailable")
	} else {
		r.checks = checks
	}
	return r
}

// Backends returns the registered backends in order.
func (r *Resolver) Backends() []Backend {
	out := make([]Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// HasPerm reports whether user holds perm, globally when obj is nil or on obj otherwise.
// Active superusers hold every permission. A nil user holds none.
func (r *Resolver) HasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, instrumentationName, "authz.HasPerm", attribute.String("authz.perm", perm))
	defer span.End()

	ok, err := r.hasPerm(ctx, user, perm, obj)
	telemetry.RecordError(span, err)
	r.record(ctx, "has_perm", ok, err)
	return ok, err
}

func (r *Resolver) hasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error) {
	if user == nil {
		return false, nil
	}
	if isActiveSuperuser(user) {
		return true, nil
	}
	for _, b := range r.backends {
		c, ok := b.(PermissionChecker)
		if !ok {
			continue
		}
		allowed, err := c.HasPerm(ctx, user, perm, obj)
		if errors.Is(err, ErrPermissionDenied) {
			r.log.WithFields(logrus.Fields{"backend": b.Name(), "user_id": user.ID, "perm": perm}).Debug("authz: backend abstained")
			continue
		}
		if err != nil {
			return false, fmt.Errorf("authz: backend %s: %w", b.Name(), err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// HasPerms reports whether user holds every permission in perms. An empty list is satisfied.
func (r *Resolver) HasPerms(ctx context.Context, user *domain.User, perms []string, obj *Object) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, instrumentationName, "authz.HasPerms", attribute.StringSlice("authz.perms", perms))
	defer span.End()

	for _, p := range perms {
		ok, err := r.hasPerm(ctx, user, p, obj)
		if err != nil {
			telemetry.RecordError(span, err)
			r.record(ctx, "has_perms", false, err)
			return false, err
		}
		if !ok {
			r.record(ctx, "has_perms", false, nil)
			return false, nil
		}
	}
	r.record(ctx, "has_perms", true, nil)
	return true, nil
}

// HasModulePerms reports whether user holds any permission under appLabel.
func (r *Resolver) HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, instrumentationName, "authz.HasModulePerms", attribute.String("authz.app_label", appLabel))
	defer span.End()

	ok, err := r.hasModulePerms(ctx, user, appLabel)
	telemetry.RecordError(span, err)
	r.record(ctx, "has_module_perms", ok, err)
	return ok, err
}

func (r *Resolver) hasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if isActiveSuperuser(user) {
		return true, nil
	}
	for _, b := range r.backends {
		c, ok := b.(ModulePermissionChecker)
		if !ok {
			continue
		}
		allowed, err := c.HasModulePerms(ctx, user, appLabel)
		if errors.Is(err, ErrPermissionDenied) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("authz: backend %s: %w", b.Name(), err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// GetAllPermissions returns the union of every backend's permissions for user.
// Superusers get exactly what the backends report.
func (r *Resolver) GetAllPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error) {
	ctx, span := telemetry.StartSpan(ctx, instrumentationName, "authz.GetAllPermissions")
	defer span.End()

	out, err := r.collect(ctx, user, func(b Backend) (Set, bool, error) {
		p, ok := b.(AllPermissionsProvider)
		if !ok {
			return nil, false, nil
		}
		s, err := p.GetAllPermissions(ctx, user, obj)
		return s, true, err
	})
	telemetry.RecordError(span, err)
	r.record(ctx, "get_all_permissions", err == nil, err)
	return out, err
}

// GetGroupPermissions returns the union of every backend's group-derived permissions for user.
func (r *Resolver) GetGroupPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error) {
	ctx, span := telemetry.StartSpan(ctx, instrumentationName, "authz.GetGroupPermissions")
	defer span.End()

	out, err := r.collect(ctx, user, func(b Backend) (Set, bool, error) {
		p, ok := b.(GroupPermissionsProvider)
		if !ok {
			return nil, false, nil
		}
		s, err := p.GetGroupPermissions(ctx, user, obj)
		return s, true, err
	})
	telemetry.RecordError(span, err)
	r.record(ctx, "get_group_permissions", err == nil, err)
	return out, err
}

// collect unions the sets returned by fn. An abstaining backend contributes nothing.
func (r *Resolver) collect(ctx context.Context, user *domain.User, fn func(Backend) (Set, bool, error)) (Set, error) {
	out := NewSet()
	if user == nil {
		return out, nil
	}
	for _, b := range r.backends {
		s, ok, err := fn(b)
		if !ok || errors.Is(err, ErrPermissionDenied) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("authz: backend %s: %w", b.Name(), err)
		}
		out.Union(s)
	}
	return out, nil
}

func (r *Resolver) record(ctx context.Context, op string, ok bool, err error) {
	if r.checks == nil {
		return
	}
	result := "deny"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "allow"
	}
	r.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

func isActiveSuperuser(u *domain.User) bool {
	return u.IsActive && u.IsSuperuser
}
