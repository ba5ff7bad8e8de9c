package repository

import (
	"context"
	"database/sql"
	"errors"

	"authentico/internal/permission/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a permission repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UserPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.app_label, p.codename, p.name
		FROM auth_permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1
		ORDER BY p.app_label, p.codename`, userID)
}

func (r *PostgresRepository) GroupPermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT DISTINCT p.id, p.app_label, p.codename, p.name
		FROM auth_permissions p
		JOIN group_permissions gp ON gp.permission_id = p.id
		JOIN user_groups ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = $1
		ORDER BY p.app_label, p.codename`, userID)
}

func (r *PostgresRepository) UserGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name
		FROM auth_groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetPermission returns the permission, or nil if not found.
func (r *PostgresRepository) GetPermission(ctx context.Context, appLabel, codename string) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.QueryRowContext(ctx,
		`SELECT id, app_label, codename, name FROM auth_permissions WHERE app_label = $1 AND codename = $2`,
		appLabel, codename,
	).Scan(&p.ID, &p.AppLabel, &p.Codename, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// CreatePermission inserts p. The caller sets ID.
func (r *PostgresRepository) CreatePermission(ctx context.Context, p *domain.Permission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_permissions (id, app_label, codename, name) VALUES ($1, $2, $3, $4)`,
		p.ID, p.AppLabel, p.Codename, p.Name)
	return err
}

// GetGroupByName returns the group, or nil if not found.
func (r *PostgresRepository) GetGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM auth_groups WHERE name = $1`, name).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts g. The caller sets ID.
func (r *PostgresRepository) CreateGroup(ctx context.Context, g *domain.Group) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO auth_groups (id, name) VALUES ($1, $2)`, g.ID, g.Name)
	return err
}

// AddUserToGroup is idempotent.
func (r *PostgresRepository) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, groupID)
	return err
}

// GrantUserPermission is idempotent.
func (r *PostgresRepository) GrantUserPermission(ctx context.Context, userID, permissionID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, permissionID)
	return err
}

// GrantGroupPermission is idempotent.
func (r *PostgresRepository) GrantGroupPermission(ctx context.Context, groupID, permissionID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, permissionID)
	return err
}

func (r *PostgresRepository) queryPermissions(ctx context.Context, query string, args ...any) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.AppLabel, &p.Codename, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
