package repository

import (
	"context"

	"authentico/internal/audit/domain"
)

// DefaultLimit caps List when Filter.Limit is unset.
const DefaultLimit = 50

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	List(ctx context.Context, f Filter) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}

// Filter selects audit events for List. Empty fields match everything; results are newest first.
type Filter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}
