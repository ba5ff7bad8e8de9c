package repository

import (
	"context"
	"errors"

	"authentico/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create and Update when another user already holds the email (case-insensitive).
var ErrDuplicateEmail = errors.New("repository: email already in use")

// Repository defines persistence for users. Email lookups are case-insensitive.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	List(ctx context.Context, p ListParams) ([]*domain.User, error)
}

// ListParams narrows and orders List results. Nil flag filters are ignored.
type ListParams struct {
	// Search is matched case-insensitively as a substring of first name, last name, email, or id.
	Search      string
	IsStaff     *bool
	IsSuperuser *bool
	IsActive    *bool
	// GroupID keeps only members of the group.
	GroupID string
	// Ordering lists column names; a leading "-" sorts descending. Defaults to email.
	Ordering []string
	Limit    int
	Offset   int
}

// SortableColumns are the column names accepted in ListParams.Ordering.
var SortableColumns = map[string]bool{
	"id":           true,
	"email":        true,
	"first_name":   true,
	"last_name":    true,
	"is_staff":     true,
	"is_superuser": true,
	"is_active":    true,
	"date_joined":  true,
	"last_login":   true,
}
