package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"authentico/internal/audit/domain"
)

const auditColumns = "id, user_id, action, resource, metadata, created_at"

// PostgresRepository stores audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	a, err := scanAuditLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// List returns audit logs matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*domain.AuditLog, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM audit_logs")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, uid, a.Action, a.Resource, meta, a.CreatedAt)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s scanner) (*domain.AuditLog, error) {
	var (
		a    domain.AuditLog
		uid  sql.NullString
		meta sql.NullString
	)
	if err := s.Scan(&a.ID, &uid, &a.Action, &a.Resource, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.UserID = uid.String
	a.Metadata = meta.String
	return &a, nil
}
