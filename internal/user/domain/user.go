package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UsernameField is the only login handle; there is no separate username.
const UsernameField = "email"

// RequiredFields lists fields, beyond the login handle and password, that interactive user creation prompts for.
var RequiredFields = []string{}

// UnusablePasswordPrefix marks a PasswordHash that never matches any password.
const UnusablePasswordPrefix = "!"

// User is the identity record. Email is the login handle and is stored lower-cased.
// Its format is not checked; only presence and length are.
type User struct {
	ID           string     `db:"id" validate:"required,len=32,hexadecimal"`
	Email        string     `db:"email" validate:"required,max=254"`
	PasswordHash string     `db:"password_hash" validate:"required"`
	FirstName    string     `db:"first_name" validate:"max=50"`
	LastName     string     `db:"last_name" validate:"max=50"`
	IsActive     bool       `db:"is_active"`
	IsStaff      bool       `db:"is_staff"`
	IsSuperuser  bool       `db:"is_superuser"`
	IsPublic     bool       `db:"is_public"`
	DateJoined   time.Time  `db:"date_joined"`
	LastLogin    *time.Time `db:"last_login"`
	// ProfileID optionally references a site-specific profile resolved through the profile registry.
	ProfileID *string `db:"profile_id"`
}

// ValidationError describes why a user record was rejected. Err, when set, is the underlying cause.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches another *ValidationError with the same field and message, so sentinel values work with errors.Is.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Field == e.Field && t.Message == e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("db"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate validates the user for persistence. Returns a *ValidationError describing the first failure.
func (u *User) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Message: describe(fe)}
	}
	return &ValidationError{Message: err.Error(), Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this value has at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// NewID returns a fresh 32-character hex identifier. Each call yields a new value.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NormalizeEmail trims the address and lower-cases the domain part after the last '@'.
// The local part is left as given. Addresses without '@' are only trimmed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// CanonicalEmail is the stored and compared form of an address: fully lower-cased.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName returns the first name plus the last name, with a space in between.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ShortName returns the first name.
func (u *User) ShortName() string {
	return u.FirstName
}

// AbsoluteURL returns the canonical path for this user.
func (u *User) AbsoluteURL() string {
	return "/users/" + u.ID + "/"
}

// HasUsablePassword reports whether PasswordHash can ever match a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

// UnusablePassword returns a marker hash that never verifies. The random suffix keeps markers distinct.
func UnusablePassword() string {
	return UnusablePasswordPrefix + NewID()
}
