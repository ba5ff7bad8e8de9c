package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"authentico/internal/authz"
	"authentico/internal/config"
	"authentico/internal/logging"
	"authentico/internal/mail"
	permdomain "authentico/internal/permission/domain"
)

// memPermStore implements authz.PermissionStore with no grants.
type memPermStore struct{}

func (memPermStore) UserPermissions(context.Context, string) ([]permdomain.Permission, error) {
	return nil, nil
}

func (memPermStore) GroupPermissions(context.Context, string) ([]permdomain.Permission, error) {
	return nil, nil
}

func testConfig(backends string) *config.Config {
	return &config.Config{
		AuthBackends:  backends,
		PermCacheSize: 16,
		PermCacheTTL:  "1m",
	}
}

func TestBuildBackends_Order(t *testing.T) {
	backends, err := BuildBackends(context.Background(), testConfig("casbin, model, opa"), memPermStore{})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	want := []string{"casbin", "model", "opa"}
	if len(backends) != len(want) {
		t.Fatalf("got %d backends, want %d", len(backends), len(want))
	}
	for i, b := range backends {
		if b.Name() != want[i] {
			t.Errorf("backend[%d] = %q, want %q", i, b.Name(), want[i])
		}
	}
	if _, ok := backends[1].(*authz.ModelBackend); !ok {
		t.Errorf("backend[1] is %T, want *authz.ModelBackend", backends[1])
	}
}

func TestBuildBackends_Empty(t *testing.T) {
	backends, err := BuildBackends(context.Background(), testConfig(""), memPermStore{})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	if len(backends) != 0 {
		t.Errorf("got %d backends, want 0", len(backends))
	}
}

func TestBuildBackends_Errors(t *testing.T) {
	if _, err := BuildBackends(context.Background(), testConfig("ldap"), memPermStore{}); err == nil {
		t.Error("BuildBackends should reject unknown backend")
	}

	cfg := testConfig("opa")
	cfg.OPAPolicyPath = filepath.Join(t.TempDir(), "missing.rego")
	if _, err := BuildBackends(context.Background(), cfg, memPermStore{}); err == nil {
		t.Error("BuildBackends should fail on missing policy file")
	}
}

func TestBuildBackends_OPAPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.rego")
	policy := "package authentico.authz\n\ndefault allow := true\n"
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig("opa")
	cfg.OPAPolicyPath = path

	backends, err := BuildBackends(context.Background(), cfg, memPermStore{})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	opa, ok := backends[0].(*authz.OPABackend)
	if !ok {
		t.Fatalf("backend is %T, want *authz.OPABackend", backends[0])
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := opa.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestNewSender(t *testing.T) {
	log := logging.Discard()

	cfg := &config.Config{DefaultFromEmail: "noreply@example.com"}
	if _, ok := NewSender(cfg, log).(*mail.LogSender); !ok {
		t.Error("NewSender without SMTP_HOST should return *mail.LogSender")
	}

	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPPort = 2525
	s, ok := NewSender(cfg, log).(*mail.SMTPSender)
	if !ok {
		t.Fatal("NewSender with SMTP_HOST should return *mail.SMTPSender")
	}
	if s.Host != "smtp.example.com" || s.Port != 2525 || s.DefaultFrom != "noreply@example.com" {
		t.Errorf("SMTPSender = %+v", s)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, logging.Discard()); err == nil {
		t.Error("New should reject nil config")
	}
}
