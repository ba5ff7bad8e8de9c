package domain

import "time"

// Actions recorded by the user lifecycle manager.
const (
	ActionUserCreated      = "user_created"
	ActionSuperuserCreated = "superuser_created"
	ActionPasswordChanged  = "password_changed"
	ActionLogin            = "login"
	ActionLoginFailure     = "login_failure"
	ActionUserDeactivated  = "user_deactivated"
	ActionEmailSent        = "email_sent"
)

// ResourceUser is the resource name for events about identity records.
const ResourceUser = "user"

// AuditLog represents an audit event. UserID is empty for events with no known user.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	Metadata  string
	CreatedAt time.Time
}
