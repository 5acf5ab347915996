package selections

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/auth"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const selectionColumns = `s.id, s.performance_cycle_id, s.mentee_id, s.status,
           s.submitted_at,
           COALESCE(s.mentor_feedback, ''),
           s.version, s.created_at, s.updated_at`

func scanSelection(row interface{ Scan(dest ...any) error }) (*Selection, error) {
	var sel Selection
	if err := row.Scan(
		&sel.ID, &sel.PerformanceCycleID, &sel.MenteeID, &sel.Status,
		&sel.SubmittedAt, &sel.MentorFeedback, &sel.Version,
		&sel.CreatedAt, &sel.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sel, nil
}

func (s *Store) GetByID(ctx context.Context, selectionID string) (*Selection, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+selectionColumns+`
    FROM reviewer_selections s
    WHERE s.id = $1
  `, selectionID)
	return scanSelection(row)
}

func (s *Store) GetByMenteeAndCycle(ctx context.Context, menteeID, cycleID string) (*Selection, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+selectionColumns+`
    FROM reviewer_selections s
    WHERE s.mentee_id = $1 AND s.performance_cycle_id = $2
  `, menteeID, cycleID)
	return scanSelection(row)
}

// ActiveReviewerCount counts how many of the given ids resolve to active
// users holding a reviewer role. A result shorter than the input means at
// least one id is unknown, inactive, or the wrong role.
func (s *Store) ActiveReviewerCount(ctx context.Context, reviewerIDs []string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM users
    WHERE id = ANY($1) AND is_active AND role = ANY($2)
  `, reviewerIDs, auth.ReviewerRoles).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) Create(ctx context.Context, cycleID, menteeID string, reviewerIDs []string) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO reviewer_selections (performance_cycle_id, mentee_id, status, submitted_at)
    VALUES ($1, $2, 'pending', now())
    RETURNING id
  `, cycleID, menteeID).Scan(&id); err != nil {
		return "", err
	}

	for _, reviewerID := range reviewerIDs {
		if _, err := tx.Exec(ctx, `
      INSERT INTO reviewer_selection_details (selection_id, reviewer_id)
      VALUES ($1, $2)
    `, id, reviewerID); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceReviewers resubmits the selection: new detail rows, status back to
// pending, submitted_at restamped, version bumped. The UPDATE carries the
// version and status guards so a concurrent writer loses cleanly; false
// means the guarded update matched nothing.
func (s *Store) ReplaceReviewers(ctx context.Context, selectionID string, reviewerIDs []string, expectedVersion int) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
    UPDATE reviewer_selections
    SET status = 'pending',
        submitted_at = now(),
        version = version + 1,
        updated_at = now()
    WHERE id = $1 AND version = $2 AND status IN ('pending', 'sent_back')
  `, selectionID, expectedVersion)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
    DELETE FROM reviewer_selection_details WHERE selection_id = $1
  `, selectionID); err != nil {
		return false, err
	}
	for _, reviewerID := range reviewerIDs {
		if _, err := tx.Exec(ctx, `
      INSERT INTO reviewer_selection_details (selection_id, reviewer_id)
      VALUES ($1, $2)
    `, selectionID, reviewerID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DeletePending removes the selection and, through the cascade, its detail
// rows. Only a still-pending selection matches.
func (s *Store) DeletePending(ctx context.Context, selectionID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM reviewer_selections WHERE id = $1 AND status = 'pending'
  `, selectionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Decide flips a pending selection to the given status. The status guard
// in the WHERE clause makes concurrent decisions safe: exactly one wins,
// the other matches zero rows. Non-empty feedback replaces the stored
// mentor feedback; empty feedback keeps whatever is there.
func (s *Store) Decide(ctx context.Context, selectionID, newStatus, feedback string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviewer_selections
    SET status = $2,
        mentor_feedback = CASE WHEN $3 <> '' THEN $3 ELSE mentor_feedback END,
        version = version + 1,
        updated_at = now()
    WHERE id = $1 AND status = 'pending'
  `, selectionID, newStatus, feedback)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetDetails loads one selection with mentee, cycle, and reviewer
// summaries.
func (s *Store) GetDetails(ctx context.Context, selectionID string) (*Details, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+selectionColumns+`,
           m.id, m.name, m.email, m.role, COALESCE(m.department, ''),
           c.id, c.name, c.start_date, c.end_date
    FROM reviewer_selections s
    JOIN users m ON m.id = s.mentee_id
    JOIN performance_cycles c ON c.id = s.performance_cycle_id
    WHERE s.id = $1
  `, selectionID)

	var d Details
	if err := row.Scan(
		&d.ID, &d.PerformanceCycleID, &d.MenteeID, &d.Status,
		&d.SubmittedAt, &d.MentorFeedback, &d.Version, &d.CreatedAt, &d.UpdatedAt,
		&d.Mentee.ID, &d.Mentee.Name, &d.Mentee.Email, &d.Mentee.Role, &d.Mentee.Department,
		&d.Cycle.ID, &d.Cycle.Name, &d.Cycle.StartDate, &d.Cycle.EndDate,
	); err != nil {
		return nil, err
	}

	reviewers, err := s.reviewersFor(ctx, []string{d.ID})
	if err != nil {
		return nil, err
	}
	d.Reviewers = reviewers[d.ID]
	return &d, nil
}

func (s *Store) List(ctx context.Context, status string, limit, offset int) ([]Details, error) {
	query := `
    SELECT ` + selectionColumns + `,
           m.id, m.name, m.email, m.role, COALESCE(m.department, ''),
           c.id, c.name, c.start_date, c.end_date
    FROM reviewer_selections s
    JOIN users m ON m.id = s.mentee_id
    JOIN performance_cycles c ON c.id = s.performance_cycle_id
    WHERE 1=1`
	args := []any{}
	if status != "" {
		query += fmt.Sprintf(" AND s.status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY s.submitted_at DESC NULLS LAST, s.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Details
	var ids []string
	for rows.Next() {
		var d Details
		if err := rows.Scan(
			&d.ID, &d.PerformanceCycleID, &d.MenteeID, &d.Status,
			&d.SubmittedAt, &d.MentorFeedback, &d.Version, &d.CreatedAt, &d.UpdatedAt,
			&d.Mentee.ID, &d.Mentee.Name, &d.Mentee.Email, &d.Mentee.Role, &d.Mentee.Department,
			&d.Cycle.ID, &d.Cycle.Name, &d.Cycle.StartDate, &d.Cycle.EndDate,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reviewers, err := s.reviewersFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Reviewers = reviewers[out[i].ID]
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, status string) (int, error) {
	query := "SELECT COUNT(1) FROM reviewer_selections"
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

func (s *Store) reviewersFor(ctx context.Context, selectionIDs []string) (map[string][]UserSummary, error) {
	out := map[string][]UserSummary{}
	if len(selectionIDs) == 0 {
		return out, nil
	}

	rows, err := s.DB.Query(ctx, `
    SELECT d.selection_id, u.id, u.name, u.email, u.role, COALESCE(u.department, '')
    FROM reviewer_selection_details d
    JOIN users u ON u.id = d.reviewer_id
    WHERE d.selection_id = ANY($1)
    ORDER BY u.name
  `, selectionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var selectionID string
		var rv UserSummary
		if err := rows.Scan(&selectionID, &rv.ID, &rv.Name, &rv.Email, &rv.Role, &rv.Department); err != nil {
			return nil, err
		}
		out[selectionID] = append(out[selectionID], rv)
	}
	return out, rows.Err()
}
