package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"authentico/internal/logging"
	"authentico/internal/user/domain"
)

// stubBackend implements every capability with fixed answers.
type stubBackend struct {
	name    string
	perms   Set
	groups  Set
	modules map[string]bool
	err     error
	calls   int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) HasPerm(_ context.Context, _ *domain.User, perm string, _ *Object) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.perms.Has(perm), nil
}

func (s *stubBackend) HasModulePerms(_ context.Context, _ *domain.User, appLabel string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.modules[appLabel], nil
}

func (s *stubBackend) GetAllPermissions(_ context.Context, _ *domain.User, _ *Object) (Set, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.perms.clone(), nil
}

func (s *stubBackend) GetGroupPermissions(_ context.Context, _ *domain.User, _ *Object) (Set, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.groups.clone(), nil
}

// nameOnly implements no capability.
type nameOnly struct{}

func (nameOnly) Name() string { return "empty" }

func quietLog() logrus.FieldLogger { return logging.Discard() }

func activeUser() *domain.User {
	return &domain.User{ID: domain.NewID(), Email: "a@x.io", IsActive: true}
}

func TestResolver_SuperuserShortCircuit(t *testing.T) {
	ctx := context.Background()
	u := activeUser()
	u.IsSuperuser = true

	r := NewResolver(quietLog())
	ok, err := r.HasPerm(ctx, u, "anything.at_all", nil)
	if err != nil || !ok {
		t.Fatalf("HasPerm = %v, %v; want true with zero backends", ok, err)
	}

	b := &stubBackend{name: "b", err: errors.New("should not be called")}
	r = NewResolver(quietLog(), b)
	if ok, err := r.HasPerm(ctx, u, "x.y", &Object{Type: "doc", ID: "1"}); err != nil || !ok {
		t.Errorf("HasPerm object = %v, %v", ok, err)
	}
	if ok, err := r.HasModulePerms(ctx, u, "x"); err != nil || !ok {
		t.Errorf("HasModulePerms = %v, %v", ok, err)
	}
	if b.calls != 0 {
		t.Errorf("backend consulted %d times for active superuser", b.calls)
	}
}

func TestResolver_InactiveSuperuserNotShortCircuited(t *testing.T) {
	u := activeUser()
	u.IsSuperuser = true
	u.IsActive = false

	b := &stubBackend{name: "b", perms: NewSet()}
	r := NewResolver(quietLog(), b)
	ok, err := r.HasPerm(context.Background(), u, "users.add_user", nil)
	if err != nil || ok {
		t.Fatalf("HasPerm = %v, %v; want false", ok, err)
	}
	if b.calls != 1 {
		t.Errorf("backend calls = %d, want 1", b.calls)
	}
}

func TestResolver_HasPerm_AnyBackend(t *testing.T) {
	ctx := context.Background()
	u := activeUser()
	first := &stubBackend{name: "first", perms: NewSet("users.view_user")}
	second := &stubBackend{name: "second", perms: NewSet("users.add_user")}
	r := NewResolver(quietLog(), nameOnly{}, first, second)

	tests := []struct {
		perm string
		want bool
	}{
		{"users.view_user", true},
		{"users.add_user", true},
		{"users.delete_user", false},
	}
	for _, tt := range tests {
		got, err := r.HasPerm(ctx, u, tt.perm, nil)
		if err != nil {
			t.Fatalf("HasPerm(%q): %v", tt.perm, err)
		}
		if got != tt.want {
			t.Errorf("HasPerm(%q) = %v, want %v", tt.perm, got, tt.want)
		}
	}
}

func TestResolver_HasPerm_FirstTrueStops(t *testing.T) {
	first := &stubBackend{name: "first", perms: NewSet("a.b")}
	second := &stubBackend{name: "second", perms: NewSet("a.b")}
	r := NewResolver(quietLog(), first, second)
	if ok, _ := r.HasPerm(context.Background(), activeUser(), "a.b", nil); !ok {
		t.Fatal("HasPerm should be true")
	}
	if second.calls != 0 {
		t.Errorf("second backend consulted after first granted")
	}
}

func TestResolver_DeniedBackendAbstains(t *testing.T) {
	ctx := context.Background()
	orders := map[string]func(deny, grant Backend) []Backend{
		"deny first":  func(deny, grant Backend) []Backend { return []Backend{deny, grant} },
		"grant first": func(deny, grant Backend) []Backend { return []Backend{grant, deny} },
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			deny := &stubBackend{name: "deny", err: ErrPermissionDenied}
			grant := &stubBackend{name: "grant", perms: NewSet("a.b"), modules: map[string]bool{"a": true}}
			r := NewResolver(quietLog(), order(deny, grant)...)

			ok, err := r.HasPerm(ctx, activeUser(), "a.b", nil)
			if err != nil || !ok {
				t.Fatalf("HasPerm = %v, %v; want true, nil", ok, err)
			}
			ok, err = r.HasModulePerms(ctx, activeUser(), "a")
			if err != nil || !ok {
				t.Fatalf("HasModulePerms = %v, %v; want true, nil", ok, err)
			}
			ok, err = r.HasPerm(ctx, activeUser(), "a.missing", nil)
			if err != nil || ok {
				t.Fatalf("HasPerm(a.missing) = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestResolver_BackendErrorAborts(t *testing.T) {
	boom := errors.New("store down")
	r := NewResolver(quietLog(), &stubBackend{name: "broken", err: boom}, &stubBackend{name: "ok", perms: NewSet("a.b")})

	_, err := r.HasPerm(context.Background(), activeUser(), "a.b", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("HasPerm err = %v, want wrapped %v", err, boom)
	}
	if _, err := r.GetAllPermissions(context.Background(), activeUser(), nil); !errors.Is(err, boom) {
		t.Fatalf("GetAllPermissions err = %v", err)
	}
}

func TestResolver_HasPerms(t *testing.T) {
	ctx := context.Background()
	u := activeUser()
	r := NewResolver(quietLog(), &stubBackend{name: "b", perms: NewSet("a.x", "a.y")})

	tests := []struct {
		name  string
		perms []string
		want  bool
	}{
		{"nil list", nil, true},
		{"empty list", []string{}, true},
		{"all held", []string{"a.x", "a.y"}, true},
		{"one missing", []string{"a.x", "a.z"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.HasPerms(ctx, u, tt.perms, nil)
			if err != nil {
				t.Fatalf("HasPerms: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasPerms = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_HasPerms_EmptyForNobody(t *testing.T) {
	r := NewResolver(quietLog())
	u := activeUser()
	if ok, err := r.HasPerms(context.Background(), u, nil, nil); err != nil || !ok {
		t.Errorf("HasPerms(nil) = %v, %v; want true", ok, err)
	}
}

func TestResolver_HasModulePerms(t *testing.T) {
	r := NewResolver(quietLog(), &stubBackend{name: "b", modules: map[string]bool{"users": true}})
	ctx := context.Background()
	if ok, _ := r.HasModulePerms(ctx, activeUser(), "users"); !ok {
		t.Error("HasModulePerms(users) should be true")
	}
	if ok, _ := r.HasModulePerms(ctx, activeUser(), "blog"); ok {
		t.Error("HasModulePerms(blog) should be false")
	}
}

func TestResolver_GetAllPermissions_UnionNoShortCircuit(t *testing.T) {
	ctx := context.Background()
	a := &stubBackend{name: "a", perms: NewSet("a.x"), groups: NewSet("g.one")}
	b := &stubBackend{name: "b", perms: NewSet("b.y", "a.x"), groups: NewSet("g.two")}
	r := NewResolver(quietLog(), a, nameOnly{}, b)

	u := activeUser()
	u.IsSuperuser = true

	all, err := r.GetAllPermissions(ctx, u, nil)
	if err != nil {
		t.Fatalf("GetAllPermissions: %v", err)
	}
	if got := all.Sorted(); len(got) != 2 || got[0] != "a.x" || got[1] != "b.y" {
		t.Errorf("GetAllPermissions = %v, want [a.x b.y]", got)
	}
	if a.calls == 0 || b.calls == 0 {
		t.Error("GetAllPermissions must consult backends even for superusers")
	}

	groups, err := r.GetGroupPermissions(ctx, u, nil)
	if err != nil {
		t.Fatalf("GetGroupPermissions: %v", err)
	}
	if got := groups.Sorted(); len(got) != 2 || got[0] != "g.one" || got[1] != "g.two" {
		t.Errorf("GetGroupPermissions = %v", got)
	}
}

func TestResolver_GetAllPermissions_DeniedContributesNothing(t *testing.T) {
	r := NewResolver(quietLog(), &stubBackend{name: "deny", err: ErrPermissionDenied}, &stubBackend{name: "b", perms: NewSet("b.y")})
	all, err := r.GetAllPermissions(context.Background(), activeUser(), nil)
	if err != nil {
		t.Fatalf("GetAllPermissions: %v", err)
	}
	if !all.Has("b.y") || len(all) != 1 {
		t.Errorf("GetAllPermissions = %v", all.Sorted())
	}
}

func TestResolver_NilUser(t *testing.T) {
	r := NewResolver(quietLog(), &stubBackend{name: "b", perms: NewSet("a.b")})
	ctx := context.Background()
	if ok, err := r.HasPerm(ctx, nil, "a.b", nil); err != nil || ok {
		t.Errorf("HasPerm(nil) = %v, %v", ok, err)
	}
	if all, err := r.GetAllPermissions(ctx, nil, nil); err != nil || len(all) != 0 {
		t.Errorf("GetAllPermissions(nil) = %v, %v", all, err)
	}
}

func TestResolver_BackendsCopy(t *testing.T) {
	r := NewResolver(nil, nameOnly{})
	bs := r.Backends()
	bs[0] = nil
	if r.Backends()[0] == nil {
		t.Error("Backends should return a copy")
	}
}
