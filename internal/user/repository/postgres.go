package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"authentico/internal/user/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, first_name, last_name, is_active, is_staff, is_superuser, is_public, date_joined, last_login, profile_id`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user with the given email compared case-insensitively, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, domain.CanonicalEmail(email))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// The email is stored lower-cased. Returns ErrDuplicateEmail on a uniqueness conflict.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.CanonicalEmail(u.Email)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.IsActive, u.IsStaff, u.IsSuperuser, u.IsPublic,
		u.DateJoined, nullTime(u.LastLogin), nullString(u.ProfileID),
	)
	return mapErr(err)
}

// Update overwrites the stored record for u.ID. Missing users are a no-op.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	u.Email = domain.CanonicalEmail(u.Email)
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
			is_active = $6, is_staff = $7, is_superuser = $8, is_public = $9,
			date_joined = $10, last_login = $11, profile_id = $12
		WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.IsActive, u.IsStaff, u.IsSuperuser, u.IsPublic,
		u.DateJoined, nullTime(u.LastLogin), nullString(u.ProfileID),
	)
	return mapErr(err)
}

// List returns users matching p in the requested order.
func (r *PostgresRepository) List(ctx context.Context, p ListParams) ([]*domain.User, error) {
	query, args, err := buildListQuery(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func buildListQuery(p ListParams) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(p.Search); s != "" {
		ph := arg("%" + strings.ToLower(s) + "%")
		where = append(where, fmt.Sprintf(
			"(lower(first_name) LIKE %[1]s OR lower(last_name) LIKE %[1]s OR lower(email) LIKE %[1]s OR id LIKE %[1]s)", ph))
	}
	if p.IsStaff != nil {
		where = append(where, "is_staff = "+arg(*p.IsStaff))
	}
	if p.IsSuperuser != nil {
		where = append(where, "is_superuser = "+arg(*p.IsSuperuser))
	}
	if p.IsActive != nil {
		where = append(where, "is_active = "+arg(*p.IsActive))
	}
	if p.GroupID != "" {
		where = append(where, "id IN (SELECT user_id FROM user_groups WHERE group_id = "+arg(p.GroupID)+")")
	}

	var b strings.Builder
	b.WriteString("SELECT " + userColumns + " FROM users")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	ordering := p.Ordering
	if len(ordering) == 0 {
		ordering = []string{"email"}
	}
	order := make([]string, 0, len(ordering))
	for _, o := range ordering {
		col, dir := o, "ASC"
		if strings.HasPrefix(o, "-") {
			col, dir = o[1:], "DESC"
		}
		if !SortableColumns[col] {
			return "", nil, fmt.Errorf("repository: cannot order by %q", o)
		}
		order = append(order, col+" "+dir)
	}
	b.WriteString(" ORDER BY " + strings.Join(order, ", "))

	if p.Limit > 0 {
		b.WriteString(" LIMIT " + arg(p.Limit))
	}
	if p.Offset > 0 {
		b.WriteString(" OFFSET " + arg(p.Offset))
	}
	return b.String(), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
		profileID sql.NullString
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.IsPublic,
		&u.DateJoined, &lastLogin, &profileID)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if profileID.Valid {
		p := profileID.String
		u.ProfileID = &p
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, pgErr.ConstraintName)
	}
	return err
}
