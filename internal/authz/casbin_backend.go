package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	permdomain "authentico/internal/permission/domain"
	"authentico/internal/user/domain"
)

//go:embed casbin_model.conf
var casbinModelContent string

// CasbinBackend grants permissions from a Casbin RBAC policy. Subjects are user IDs or
// role names; a permission "app_label.codename" is the (object, action) pair (app_label, codename).
// It answers global checks only.
type CasbinBackend struct {
	enforcer   *casbin.SyncedEnforcer
	policyPath string
}

// ErrNoPolicyFile is returned by Save when the backend was built without a policy file.
var ErrNoPolicyFile = errors.New("authz: casbin policy has no file to save to")

// NewCasbinBackend builds an enforcer from the embedded model. When policyPath is set,
// policy lines are loaded from that CSV file; otherwise the policy starts empty.
func NewCasbinBackend(policyPath string) (*CasbinBackend, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if policyPath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	return &CasbinBackend{enforcer: enforcer, policyPath: policyPath}, nil
}

func (b *CasbinBackend) Name() string { return "casbin" }

// AddPermission grants perm to subject (a user ID or role name).
func (b *CasbinBackend) AddPermission(subject, perm string) error {
	app, code, err := permdomain.ParsePermission(perm)
	if err != nil {
		return err
	}
	_, err = b.enforcer.AddPolicy(subject, app, code)
	return err
}

// AddRoleForUser makes userID inherit role's permissions.
func (b *CasbinBackend) AddRoleForUser(userID, role string) error {
	_, err := b.enforcer.AddRoleForUser(userID, role)
	return err
}

// Save writes the in-memory policy back to the policy file.
func (b *CasbinBackend) Save() error {
	if b.policyPath == "" {
		return ErrNoPolicyFile
	}
	if err := b.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("save casbin policy: %w", err)
	}
	return nil
}

func (b *CasbinBackend) HasPerm(ctx context.Context, user *domain.User, perm string, obj *Object) (bool, error) {
	if !user.IsActive || obj != nil {
		return false, nil
	}
	app, code, err := permdomain.ParsePermission(perm)
	if err != nil {
		return false, nil
	}
	return b.enforcer.Enforce(user.ID, app, code)
}

func (b *CasbinBackend) HasModulePerms(ctx context.Context, user *domain.User, appLabel string) (bool, error) {
	if !user.IsActive {
		return false, nil
	}
	rules, err := b.enforcer.GetImplicitPermissionsForUser(user.ID)
	if err != nil {
		return false, err
	}
	for _, r := range rules {
		if len(r) >= 3 && r[1] == appLabel {
			return true, nil
		}
	}
	return false, nil
}

func (b *CasbinBackend) GetAllPermissions(ctx context.Context, user *domain.User, obj *Object) (Set, error) {
	out := NewSet()
	if !user.IsActive || obj != nil {
		return out, nil
	}
	rules, err := b.enforcer.GetImplicitPermissionsForUser(user.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if len(r) >= 3 {
			out.Add(r[1] + "." + r[2])
		}
	}
	return out, nil
}
