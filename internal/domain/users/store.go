package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/auth"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = `id, email, name, role,
           COALESCE(department, ''),
           COALESCE(position, ''),
           is_active, mfa_enabled, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Department, &u.Position,
		&u.IsActive, &u.MFAEnabled, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetByID(ctx context.Context, userID string) (*User, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE id = $1
  `, userID)
	return scanUser(row)
}

func (s *Store) List(ctx context.Context, filter ListFilter, limit, offset int) ([]User, error) {
	query, args := buildListQuery("SELECT "+userColumns, filter)
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter ListFilter) (int, error) {
	query, args := buildListQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildListQuery(prefix string, filter ListFilter) (string, []any) {
	query := prefix + " FROM users WHERE 1=1"
	args := []any{}
	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", len(args)+1)
		args = append(args, filter.Role)
	}
	if filter.Department != "" {
		query += fmt.Sprintf(" AND department = $%d", len(args)+1)
		args = append(args, filter.Department)
	}
	return query, args
}

func (s *Store) Create(ctx context.Context, u User, passwordHash string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, name, role, department, position, password_hash, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, strings.ToLower(u.Email), u.Name, u.Role, nullIfEmpty(u.Department), nullIfEmpty(u.Position), passwordHash, u.IsActive).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, userID string, u User) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users
    SET name = $1,
        role = $2,
        department = $3,
        position = $4,
        is_active = $5,
        updated_at = now()
    WHERE id = $6
  `, u.Name, u.Role, nullIfEmpty(u.Department), nullIfEmpty(u.Position), u.IsActive, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID, name, department, position string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users
    SET name = $1,
        department = $2,
        position = $3,
        updated_at = now()
    WHERE id = $4
  `, name, nullIfEmpty(department), nullIfEmpty(position), userID)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2
  `, passwordHash, userID)
	return err
}

// IsReferenced reports whether the user appears in any selection, detail
// row, or feedback form. Referenced users are deactivated on delete so the
// workflow history keeps resolving.
func (s *Store) IsReferenced(ctx context.Context, userID string) (bool, error) {
	var referenced bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM reviewer_selections WHERE mentee_id = $1)
        OR EXISTS (SELECT 1 FROM reviewer_selection_details WHERE reviewer_id = $1)
        OR EXISTS (SELECT 1 FROM feedback_forms WHERE employee_id = $1 OR reviewer_id = $1)
  `, userID).Scan(&referenced)
	if err != nil {
		return false, err
	}
	return referenced, nil
}

func (s *Store) Deactivate(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET is_active = false, updated_at = now() WHERE id = $1
  `, userID)
	return err
}

func (s *Store) Delete(ctx context.Context, userID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListReviewers(ctx context.Context) ([]Reviewer, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, role,
           COALESCE(department, ''),
           COALESCE(position, '')
    FROM users
    WHERE is_active AND role = ANY($1)
    ORDER BY name
  `, auth.ReviewerRoles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reviewer
	for rows.Next() {
		var rv Reviewer
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.Role, &rv.Department, &rv.Position); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
