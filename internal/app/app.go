// Package app assembles the runtime components from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"authentico/internal/admin"
	"authentico/internal/audit"
	auditrepo "authentico/internal/audit/repository"
	"authentico/internal/authz"
	"authentico/internal/config"
	"authentico/internal/db"
	"authentico/internal/mail"
	permrepo "authentico/internal/permission/repository"
	permservice "authentico/internal/permission/service"
	"authentico/internal/profile"
	"authentico/internal/security"
	telemetry "authentico/internal/telemetry/otel"
	userrepo "authentico/internal/user/repository"
	"authentico/internal/user/service"
)

// App holds the wired components. Close releases the database and telemetry providers.
type App struct {
	Config *config.Config
	Log    logrus.FieldLogger
	DB     *sql.DB
	Users  userrepo.Repository
	Perms  permrepo.Repository
	Audit  *audit.Logger
	// AuditLogs reads back the events Audit records.
	AuditLogs auditrepo.Repository
	Manager   *service.Manager
	Resolver  *authz.Resolver
	// Grants writes the permission rows the model backend reads.
	Grants   *permservice.Grants
	Profiles *profile.Registry
	Admin    *admin.ModelAdmin
	// OPA is set when the opa backend is configured; health reporting uses it.
	OPA *authz.OPABackend
	// Model is set when the model backend is configured.
	Model *authz.ModelBackend
	// Casbin is set when the casbin backend is configured.
	Casbin *authz.CasbinBackend

	providers *telemetry.Providers
}

// New opens the database, installs telemetry providers, and wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("app: telemetry: %w", err)
	}
	providers.SetGlobal()
	if l, ok := log.(*logrus.Logger); ok && cfg.OTLPEndpoint != "" {
		l.AddHook(telemetry.NewLogHook(providers.LoggerProvider, l.GetLevel()))
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("app: db: %w", err)
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        conn,
		Users:     userrepo.NewPostgresRepository(conn),
		Perms:     permrepo.NewPostgresRepository(conn),
		Profiles:  profile.NewRegistry(cfg.AuthProfileModule, log, profile.WithCache(cfg.PermCacheSize, cfg.PermCacheDuration())),
		Admin:     admin.NewUserAdmin(),
		providers: providers,
	}
	a.AuditLogs = auditrepo.NewPostgresRepository(conn)
	a.Audit = audit.NewLogger(a.AuditLogs, log)

	backends, err := BuildBackends(ctx, cfg, a.Perms)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	for _, b := range backends {
		switch v := b.(type) {
		case *authz.OPABackend:
			a.OPA = v
		case *authz.ModelBackend:
			a.Model = v
		case *authz.CasbinBackend:
			a.Casbin = v
		}
	}
	a.Resolver = authz.NewResolver(log, backends...)
	var cache permservice.CacheInvalidator
	if a.Model != nil {
		cache = a.Model
	}
	a.Grants = permservice.NewGrants(a.Perms, cache, log)

	hasher := security.NewHasher(cfg.BcryptCost, cfg.PasswordMinLength)
	a.Manager = service.NewManager(a.Users, hasher, a.Audit, NewSender(cfg, log), a.Profiles, log)

	if err := a.Admin.Validate(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// BuildBackends constructs the permission backends named in AUTH_BACKENDS, in order.
func BuildBackends(ctx context.Context, cfg *config.Config, store authz.PermissionStore) ([]authz.Backend, error) {
	names, err := cfg.Backends()
	if err != nil {
		return nil, err
	}
	out := make([]authz.Backend, 0, len(names))
	for _, name := range names {
		var (
			b   authz.Backend
			err error
		)
		switch name {
		case config.BackendModel:
			b = authz.NewModelBackend(store, cfg.PermCacheSize, cfg.PermCacheDuration())
		case config.BackendOPA:
			if cfg.OPAPolicyPath != "" {
				b, err = authz.NewOPABackendFromFile(ctx, cfg.OPAPolicyPath)
			} else {
				b, err = authz.NewOPABackend(ctx, authz.DefaultPolicy)
			}
		case config.BackendCasbin:
			b, err = authz.NewCasbinBackend(cfg.CasbinPolicyPath)
		default:
			err = fmt.Errorf("unknown auth backend %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("app: backend %s: %w", name, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// NewSender returns an SMTP sender when a relay is configured, otherwise a sender that only logs.
func NewSender(cfg *config.Config, log logrus.FieldLogger) mail.Sender {
	if cfg.MailEnabled() {
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.DefaultFromEmail)
	}
	return &mail.LogSender{Log: log, DefaultFrom: cfg.DefaultFromEmail}
}

// Close releases resources held by the app. Safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.WithError(err).Warn("app: close db")
		}
		a.DB = nil
	}
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			a.Log.WithError(err).Warn("app: shutdown telemetry")
		}
		a.providers = nil
	}
}
