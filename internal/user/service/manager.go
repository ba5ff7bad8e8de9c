package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"authentico/internal/audit"
	auditdomain "authentico/internal/audit/domain"
	"authentico/internal/mail"
	"authentico/internal/security"
	telemetry "authentico/internal/telemetry/otel"
	"authentico/internal/user/domain"
	"authentico/internal/user/repository"
)

const tracerName = "authentico/users"

// Sentinel errors for the user manager. Validation failures are *domain.ValidationError
// values and match with errors.Is or errors.As.
var (
	ErrEmailRequired      = &domain.ValidationError{Field: "email", Message: "users must have an email address"}
	ErrEmailTaken         = &domain.ValidationError{Field: "email", Message: "a user with that email already exists"}
	ErrPasswordTooShort   = &domain.ValidationError{Field: "password", Message: "password is too short"}
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// UserRepo is the minimal user repository needed by the manager.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
}

// ProfileSource resolves a user's site-specific profile.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (any, error)
}

// Manager creates users and superusers and performs lifecycle operations on them.
type Manager struct {
	users    UserRepo
	hasher   *security.Hasher
	audit    audit.AuditLogger
	mail     mail.Sender
	profiles ProfileSource
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewManager returns a Manager. auditLog, sender, and profiles may be nil: audit events are then
// dropped, EmailUser fails, and GetProfile fails.
func NewManager(users UserRepo, hasher *security.Hasher, auditLog audit.AuditLogger, sender mail.Sender, profiles ProfileSource, log logrus.FieldLogger) *Manager {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		users:    users,
		hasher:   hasher,
		audit:    auditLog,
		mail:     sender,
		profiles: profiles,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Option sets an optional field on a user being created.
type Option func(*domain.User)

func WithFirstName(name string) Option {
	return func(u *domain.User) { u.FirstName = strings.TrimSpace(name) }
}

func WithLastName(name string) Option {
	return func(u *domain.User) { u.LastName = strings.TrimSpace(name) }
}

// WithPublic sets whether the user is publicly visible. Users are public by default.
func WithPublic(public bool) Option {
	return func(u *domain.User) { u.IsPublic = public }
}

func WithProfileID(id string) Option {
	return func(u *domain.User) {
		if id == "" {
			u.ProfileID = nil
			return
		}
		u.ProfileID = &id
	}
}

// CreateUser creates and persists an active, non-staff, non-superuser user.
// An empty password leaves the user without a usable password.
func (m *Manager) CreateUser(ctx context.Context, email, password string, opts ...Option) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "users.CreateUser")
	defer span.End()

	u, err := m.createUser(ctx, email, password, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionUserCreated, auditdomain.ResourceUser, "")
	m.log.WithField("user_id", u.ID).Info("users: created user")
	return u, nil
}

func (m *Manager) createUser(ctx context.Context, email, password string, opts []Option) (*domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}
	now := m.now()
	u := &domain.User{
		ID:          domain.NewID(),
		Email:       domain.NormalizeEmail(email),
		IsStaff:     false,
		IsActive:    true,
		IsSuperuser: false,
		IsPublic:    true,
		DateJoined:  now,
		LastLogin:   &now,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := m.hashPassword(u, password); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	existing, err := m.users.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, emailTaken(repository.ErrDuplicateEmail)
	}
	if err := m.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, emailTaken(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// CreateSuperuser creates a user as CreateUser does, then makes it active staff with every permission.
func (m *Manager) CreateSuperuser(ctx context.Context, email, password string, opts ...Option) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "users.CreateSuperuser")
	defer span.End()

	u, err := m.createUser(ctx, email, password, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	u.IsStaff = true
	u.IsActive = true
	u.IsSuperuser = true
	if err := m.users.Update(ctx, u); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("promote superuser: %w", err)
	}
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionSuperuserCreated, auditdomain.ResourceUser, "")
	m.log.WithField("user_id", u.ID).Info("users: created superuser")
	return u, nil
}

// SetPassword replaces the user's password. An empty password makes it unusable; any other
// password must meet the configured minimum length.
func (m *Manager) SetPassword(ctx context.Context, userID, password string) error {
	u, err := m.get(ctx, userID)
	if err != nil {
		return err
	}
	if password != "" && !m.hasher.Check(password) {
		return &domain.ValidationError{
			Field:   ErrPasswordTooShort.Field,
			Message: ErrPasswordTooShort.Message,
			Err:     fmt.Errorf("minimum length is %d characters", m.hasher.MinLength),
		}
	}
	if err := m.hashPassword(u, password); err != nil {
		return err
	}
	if err := m.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionPasswordChanged, auditdomain.ResourceUser, "")
	return nil
}

// SetUnusablePassword marks the user as having no password; Authenticate will always fail.
func (m *Manager) SetUnusablePassword(ctx context.Context, userID string) error {
	return m.SetPassword(ctx, userID, "")
}

// Authenticate checks email and password and records the login time. Unknown emails,
// inactive users, unusable passwords, and wrong passwords all return ErrInvalidCredentials.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "users.Authenticate")
	defer span.End()

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if u == nil || !u.IsActive || !u.HasUsablePassword() {
		m.audit.LogEvent(ctx, userIDOf(u), auditdomain.ActionLoginFailure, auditdomain.ResourceUser, "")
		return nil, ErrInvalidCredentials
	}
	if err := m.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		m.audit.LogEvent(ctx, u.ID, auditdomain.ActionLoginFailure, auditdomain.ResourceUser, "")
		return nil, ErrInvalidCredentials
	}
	now := m.now()
	u.LastLogin = &now
	if err := m.users.Update(ctx, u); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("update last login: %w", err)
	}
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionLogin, auditdomain.ResourceUser, "")
	return u, nil
}

// Deactivate sets IsActive to false. Users are never deleted.
func (m *Manager) Deactivate(ctx context.Context, userID string) error {
	u, err := m.get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return nil
	}
	u.IsActive = false
	if err := m.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionUserDeactivated, auditdomain.ResourceUser, "")
	return nil
}

// EmailUser sends a message to the user's address. An empty from uses the sender's default.
func (m *Manager) EmailUser(ctx context.Context, userID, subject, message, from string) error {
	if m.mail == nil {
		return errors.New("email user: no mail sender configured")
	}
	u, err := m.get(ctx, userID)
	if err != nil {
		return err
	}
	if err := m.mail.Send(ctx, from, []string{u.Email}, subject, message); err != nil {
		return err
	}
	m.audit.LogEvent(ctx, u.ID, auditdomain.ActionEmailSent, auditdomain.ResourceUser, subject)
	return nil
}

// GetProfile returns the user's site-specific profile.
func (m *Manager) GetProfile(ctx context.Context, userID string) (any, error) {
	if m.profiles == nil {
		return nil, errors.New("get profile: no profile registry configured")
	}
	u, err := m.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.profiles.Get(ctx, u.ID)
}

// GetByEmail returns the user with email (case-insensitive) or ErrUserNotFound.
func (m *Manager) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *Manager) get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// hashPassword never stores or logs the plaintext.
func (m *Manager) hashPassword(u *domain.User, password string) error {
	if password == "" {
		u.PasswordHash = domain.UnusablePassword()
		return nil
	}
	hash, err := m.hasher.Hash([]byte(password))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	return nil
}

func emailTaken(cause error) error {
	return &domain.ValidationError{Field: ErrEmailTaken.Field, Message: ErrEmailTaken.Message, Err: cause}
}

func userIDOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
