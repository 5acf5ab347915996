package reports

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"perfreview/internal/domain/cycles"
	"perfreview/internal/domain/feedback"
	"perfreview/internal/domain/selections"
	"perfreview/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// ActiveCycle returns the newest active cycle as {id, name}, or nil when no
// cycle is active.
func (s *Store) ActiveCycle(ctx context.Context) (map[string]any, error) {
	var id, name string
	err := s.DB.QueryRow(ctx, `
    SELECT id, name
    FROM performance_cycles
    WHERE status = $1
    ORDER BY start_date DESC, created_at DESC
    LIMIT 1
  `, cycles.StatusActive).Scan(&id, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "name": name}, nil
}

// SelectionStatus reports the mentee's selection in the given cycle. ok is
// false when nothing was submitted.
func (s *Store) SelectionStatus(ctx context.Context, menteeID, cycleID string) (string, int, bool, error) {
	var status string
	var reviewers int
	err := s.DB.QueryRow(ctx, `
    SELECT s.status,
           (SELECT COUNT(1) FROM reviewer_selection_details d WHERE d.selection_id = s.id)
    FROM reviewer_selections s
    WHERE s.mentee_id = $1 AND s.performance_cycle_id = $2
  `, menteeID, cycleID).Scan(&status, &reviewers)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return status, reviewers, true, nil
}

func (s *Store) PendingApprovals(ctx context.Context) (int, error) {
	var pendingApprovals int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reviewer_selections WHERE status = $1", selections.StatusPending).Scan(&pendingApprovals); err != nil {
		return 0, err
	}
	return pendingApprovals, nil
}

func (s *Store) ApprovedToday(ctx context.Context) (int, error) {
	var approvedToday int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reviewer_selections WHERE status = $1 AND updated_at::date = CURRENT_DATE", selections.StatusApproved).Scan(&approvedToday); err != nil {
		return 0, err
	}
	return approvedToday, nil
}

func (s *Store) MenteesTotal(ctx context.Context) (int, error) {
	var menteesTotal int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(DISTINCT mentee_id) FROM reviewer_selections").Scan(&menteesTotal); err != nil {
		return 0, err
	}
	return menteesTotal, nil
}

// AssignedAwaitingForm counts approved selections naming the reviewer where
// the reviewer has not started a feedback form yet.
func (s *Store) AssignedAwaitingForm(ctx context.Context, reviewerID string) (int, error) {
	var awaiting int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM reviewer_selection_details d
    JOIN reviewer_selections s ON d.selection_id = s.id
    WHERE d.reviewer_id = $1 AND s.status = $2
      AND NOT EXISTS (
        SELECT 1 FROM feedback_forms f
        WHERE f.reviewer_id = d.reviewer_id
          AND f.employee_id = s.mentee_id
          AND f.performance_cycle_id = s.performance_cycle_id
      )
  `, reviewerID, selections.StatusApproved).Scan(&awaiting)
	if err != nil {
		return 0, err
	}
	return awaiting, nil
}

func (s *Store) FormsByReviewerAndStatus(ctx context.Context, reviewerID, status string) (int, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM feedback_forms WHERE reviewer_id = $1 AND status = $2", reviewerID, status).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) TotalUsers(ctx context.Context) (int, error) {
	var totalUsers int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users").Scan(&totalUsers); err != nil {
		return 0, err
	}
	return totalUsers, nil
}

func (s *Store) ActiveUsers(ctx context.Context) (int, error) {
	var activeUsers int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE is_active").Scan(&activeUsers); err != nil {
		return 0, err
	}
	return activeUsers, nil
}

func (s *Store) SelectionCounts(ctx context.Context) (map[string]int, error) {
	return s.keyedCounts(ctx, "SELECT status, COUNT(1) FROM reviewer_selections GROUP BY status")
}

func (s *Store) FormCounts(ctx context.Context) (map[string]int, error) {
	return s.keyedCounts(ctx, "SELECT status, COUNT(1) FROM feedback_forms GROUP BY status")
}

func (s *Store) CycleParticipants(ctx context.Context, cycleID string) (int, error) {
	var participants int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(DISTINCT mentee_id) FROM reviewer_selections WHERE performance_cycle_id = $1", cycleID).Scan(&participants); err != nil {
		return 0, err
	}
	return participants, nil
}

func (s *Store) CycleSelectionCounts(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.keyedCounts(ctx, "SELECT status, COUNT(1) FROM reviewer_selections WHERE performance_cycle_id = $1 GROUP BY status", cycleID)
}

func (s *Store) CycleFormCounts(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.keyedCounts(ctx, "SELECT status, COUNT(1) FROM feedback_forms WHERE performance_cycle_id = $1 GROUP BY status", cycleID)
}

// CycleRatingDistribution only counts submitted forms. Drafts carry
// provisional ratings and stay out of reporting.
func (s *Store) CycleRatingDistribution(ctx context.Context, cycleID string) (map[string]int, error) {
	return s.keyedCounts(ctx, `
    SELECT overall_rating, COUNT(1)
    FROM feedback_forms
    WHERE performance_cycle_id = $1 AND status = $2 AND overall_rating <> ''
    GROUP BY overall_rating
  `, cycleID, feedback.StatusSubmitted)
}

func (s *Store) keyedCounts(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}
