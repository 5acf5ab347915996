package feedback

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const formColumns = `f.id, f.employee_id, f.reviewer_id, f.performance_cycle_id,
           COALESCE(f.strengths, ''),
           COALESCE(f.improvements, ''),
           COALESCE(f.overall_rating, ''),
           f.status, f.submitted_at, f.version, f.created_at, f.updated_at`

func scanForm(row interface{ Scan(dest ...any) error }) (*Form, error) {
	var f Form
	if err := row.Scan(
		&f.ID, &f.EmployeeID, &f.ReviewerID, &f.PerformanceCycleID,
		&f.Strengths, &f.Improvements, &f.OverallRating,
		&f.Status, &f.SubmittedAt, &f.Version, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// IsAssigned reports whether an approved selection for the employee in the
// cycle names the reviewer. Approval is what authorizes a feedback form.
func (s *Store) IsAssigned(ctx context.Context, reviewerID, employeeID, cycleID string) (bool, error) {
	var assigned bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1
      FROM reviewer_selection_details d
      JOIN reviewer_selections sel ON sel.id = d.selection_id
      WHERE d.reviewer_id = $1
        AND sel.mentee_id = $2
        AND sel.performance_cycle_id = $3
        AND sel.status = 'approved'
    )
  `, reviewerID, employeeID, cycleID).Scan(&assigned)
	if err != nil {
		return false, err
	}
	return assigned, nil
}

func (s *Store) ActiveUserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active)
  `, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) Create(ctx context.Context, f Form) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO feedback_forms (employee_id, reviewer_id, performance_cycle_id, strengths, improvements, overall_rating, status)
    VALUES ($1,$2,$3,$4,$5,$6,'draft')
    RETURNING id
  `, f.EmployeeID, f.ReviewerID, f.PerformanceCycleID,
		nullIfEmpty(f.Strengths), nullIfEmpty(f.Improvements), nullIfEmpty(f.OverallRating)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, formID string) (*Form, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+formColumns+`
    FROM feedback_forms f
    WHERE f.id = $1
  `, formID)
	return scanForm(row)
}

// Update rewrites a draft's content. The version and draft guards live in
// the WHERE clause; zero rows means the caller lost a race or the form left
// draft.
func (s *Store) Update(ctx context.Context, formID, strengths, improvements, rating string, expectedVersion int) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE feedback_forms
    SET strengths = $2,
        improvements = $3,
        overall_rating = $4,
        version = version + 1,
        updated_at = now()
    WHERE id = $1 AND version = $5 AND status = 'draft'
  `, formID, nullIfEmpty(strengths), nullIfEmpty(improvements), nullIfEmpty(rating), expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Submit finalizes a draft. After this the form is immutable.
func (s *Store) Submit(ctx context.Context, formID, strengths, improvements, rating string, expectedVersion int) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE feedback_forms
    SET strengths = $2,
        improvements = $3,
        overall_rating = $4,
        status = 'submitted',
        submitted_at = now(),
        version = version + 1,
        updated_at = now()
    WHERE id = $1 AND version = $5 AND status = 'draft'
  `, formID, strengths, improvements, rating, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteDraft(ctx context.Context, formID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM feedback_forms WHERE id = $1 AND status = 'draft'
  `, formID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const formDetailJoins = `
    FROM feedback_forms f
    JOIN users e ON e.id = f.employee_id
    JOIN users r ON r.id = f.reviewer_id
    JOIN performance_cycles c ON c.id = f.performance_cycle_id`

func (s *Store) listDetails(ctx context.Context, where string, args []any, limit, offset int) ([]FormDetails, error) {
	query := "SELECT " + formColumns + ", e.name, r.name, c.name" + formDetailJoins + where
	query += fmt.Sprintf(" ORDER BY f.updated_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FormDetails
	for rows.Next() {
		var d FormDetails
		if err := rows.Scan(
			&d.ID, &d.EmployeeID, &d.ReviewerID, &d.PerformanceCycleID,
			&d.Strengths, &d.Improvements, &d.OverallRating,
			&d.Status, &d.SubmittedAt, &d.Version, &d.CreatedAt, &d.UpdatedAt,
			&d.EmployeeName, &d.ReviewerName, &d.CycleName,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListByReviewer(ctx context.Context, reviewerID string, filter ListFilter, limit, offset int) ([]FormDetails, error) {
	where := " WHERE f.reviewer_id = $1"
	args := []any{reviewerID}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND f.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.EmployeeID != "" {
		where += fmt.Sprintf(" AND f.employee_id = $%d", len(args)+1)
		args = append(args, filter.EmployeeID)
	}
	return s.listDetails(ctx, where, args, limit, offset)
}

func (s *Store) CountByReviewer(ctx context.Context, reviewerID string, filter ListFilter) (int, error) {
	query := "SELECT COUNT(1) FROM feedback_forms f WHERE f.reviewer_id = $1"
	args := []any{reviewerID}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND f.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.EmployeeID != "" {
		query += fmt.Sprintf(" AND f.employee_id = $%d", len(args)+1)
		args = append(args, filter.EmployeeID)
	}
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListSubmittedForEmployee returns the forms written about the employee.
// Drafts stay reviewer-private and never appear here.
func (s *Store) ListSubmittedForEmployee(ctx context.Context, employeeID string, limit, offset int) ([]FormDetails, error) {
	where := " WHERE f.employee_id = $1 AND f.status = 'submitted'"
	return s.listDetails(ctx, where, []any{employeeID}, limit, offset)
}

func (s *Store) CountSubmittedForEmployee(ctx context.Context, employeeID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM feedback_forms WHERE employee_id = $1 AND status = 'submitted'
  `, employeeID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListAll(ctx context.Context, status string, limit, offset int) ([]FormDetails, error) {
	where := " WHERE 1=1"
	args := []any{}
	if status != "" {
		where += fmt.Sprintf(" AND f.status = $%d", len(args)+1)
		args = append(args, status)
	}
	return s.listDetails(ctx, where, args, limit, offset)
}

func (s *Store) CountAll(ctx context.Context, status string) (int, error) {
	query := "SELECT COUNT(1) FROM feedback_forms"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListAssignments pairs each employee from an approved selection naming the
// reviewer with the reviewer's form for that pairing, when one exists.
func (s *Store) ListAssignments(ctx context.Context, reviewerID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.id, u.name, u.email, COALESCE(u.department, ''),
           c.id, c.name,
           COALESCE(f.id::text, ''),
           COALESCE(f.status, 'none')
    FROM reviewer_selection_details d
    JOIN reviewer_selections sel ON sel.id = d.selection_id AND sel.status = 'approved'
    JOIN users u ON u.id = sel.mentee_id
    JOIN performance_cycles c ON c.id = sel.performance_cycle_id
    LEFT JOIN feedback_forms f
      ON f.employee_id = sel.mentee_id
     AND f.reviewer_id = d.reviewer_id
     AND f.performance_cycle_id = sel.performance_cycle_id
    WHERE d.reviewer_id = $1
    ORDER BY c.start_date DESC, u.name
  `, reviewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(
			&a.EmployeeID, &a.EmployeeName, &a.EmployeeEmail, &a.EmployeeDepartment,
			&a.PerformanceCycleID, &a.CycleName, &a.FormID, &a.FormStatus,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
