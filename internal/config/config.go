// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Known permission backend names accepted in AUTH_BACKENDS.
const (
	BackendModel  = "model"
	BackendOPA    = "opa"
	BackendCasbin = "casbin"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC health server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PasswordMinLength is the minimum accepted password length; default 6.
	PasswordMinLength int `mapstructure:"PASSWORD_MIN_LENGTH"`
	// AuthBackends is the ordered, comma-separated list of permission backends (model, opa, casbin).
	AuthBackends string `mapstructure:"AUTH_BACKENDS"`
	// PermCacheSize is the number of per-user permission sets the model backend keeps.
	PermCacheSize int `mapstructure:"PERM_CACHE_SIZE"`
	// PermCacheTTL is how long a cached permission set stays valid (e.g. "5m").
	PermCacheTTL string `mapstructure:"PERM_CACHE_TTL"`
	// OPAPolicyPath is an optional Rego file replacing the built-in object policy.
	OPAPolicyPath string `mapstructure:"OPA_POLICY_PATH"`
	// CasbinPolicyPath is an optional Casbin CSV policy file.
	CasbinPolicyPath string `mapstructure:"CASBIN_POLICY_PATH"`
	// AuthProfileModule names the registered profile loader as app_label.ModelName. Empty disables profiles.
	AuthProfileModule string `mapstructure:"AUTH_PROFILE_MODULE"`

	// SMTP settings for EmailUser. When SMTPHost is empty, mail is logged instead of sent.
	SMTPHost         string `mapstructure:"SMTP_HOST"`
	SMTPPort         int    `mapstructure:"SMTP_PORT"`
	SMTPUsername     string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword     string `mapstructure:"SMTP_PASSWORD"`
	DefaultFromEmail string `mapstructure:"DEFAULT_FROM_EMAIL"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel resource service name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("AUTH_BACKENDS", BackendModel)
	v.SetDefault("PERM_CACHE_SIZE", 1024)
	v.SetDefault("PERM_CACHE_TTL", "5m")
	v.SetDefault("OPA_POLICY_PATH", "")
	v.SetDefault("CASBIN_POLICY_PATH", "")
	v.SetDefault("AUTH_PROFILE_MODULE", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("DEFAULT_FROM_EMAIL", "webmaster@localhost")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "authentico")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.PasswordMinLength == 0 {
		cfg.PasswordMinLength = 6
	}
	if cfg.PasswordMinLength < 1 {
		return nil, errors.New("config: PASSWORD_MIN_LENGTH must be positive")
	}

	if _, err := cfg.Backends(); err != nil {
		return nil, err
	}

	if d, err := time.ParseDuration(cfg.PermCacheTTL); err != nil || d <= 0 {
		return nil, fmt.Errorf("config: PERM_CACHE_TTL %q is not a positive duration", cfg.PermCacheTTL)
	}
	if cfg.PermCacheSize <= 0 {
		return nil, errors.New("config: PERM_CACHE_SIZE must be positive")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return &cfg, nil
}

// Backends returns the configured permission backend names in order.
// Duplicates and unknown names are errors; an empty list means no backends.
func (c *Config) Backends() ([]string, error) {
	if c == nil || strings.TrimSpace(c.AuthBackends) == "" {
		return nil, nil
	}
	parts := strings.Split(c.AuthBackends, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		switch name {
		case BackendModel, BackendOPA, BackendCasbin:
		default:
			return nil, fmt.Errorf("config: unknown auth backend %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("config: auth backend %q listed twice", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// PermCacheDuration parses PermCacheTTL. Returns 5m if unset or invalid.
func (c *Config) PermCacheDuration() time.Duration {
	d, err := time.ParseDuration(c.PermCacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c != nil && strings.TrimSpace(c.SMTPHost) != ""
}
