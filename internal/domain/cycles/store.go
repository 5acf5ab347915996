package cycles

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

const cycleColumns = `id, name, start_date, end_date, status,
           COALESCE(description, ''),
           created_at, updated_at`

func scanCycle(row interface{ Scan(dest ...any) error }) (*Cycle, error) {
	var c Cycle
	if err := row.Scan(
		&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Status,
		&c.Description, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActive resolves the single active cycle. With legacy duplicates the
// latest start_date wins, then the latest created_at.
func (s *Store) GetActive(ctx context.Context) (*Cycle, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+cycleColumns+`
    FROM performance_cycles
    WHERE status = 'active'
    ORDER BY start_date DESC, created_at DESC
    LIMIT 1
  `)
	return scanCycle(row)
}

func (s *Store) GetByID(ctx context.Context, cycleID string) (*Cycle, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+cycleColumns+`
    FROM performance_cycles
    WHERE id = $1
  `, cycleID)
	return scanCycle(row)
}

func (s *Store) List(ctx context.Context, status string, limit, offset int) ([]Cycle, error) {
	query := "SELECT " + cycleColumns + " FROM performance_cycles WHERE 1=1"
	args := []any{}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY start_date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, status string) (int, error) {
	query := "SELECT COUNT(1) FROM performance_cycles"
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

// Create inserts the cycle. An `active` status demotes every other active
// cycle in the same transaction so at most one stays active.
func (s *Store) Create(ctx context.Context, c Cycle) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	if c.Status == StatusActive {
		if _, err := tx.Exec(ctx, `
      UPDATE performance_cycles SET status = 'inactive', updated_at = now()
      WHERE status = 'active'
    `); err != nil {
			return "", err
		}
	}

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO performance_cycles (name, start_date, end_date, status, description)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, c.Name, c.StartDate, c.EndDate, c.Status, nullIfEmpty(c.Description)).Scan(&id); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, cycleID string, c Cycle) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if c.Status == StatusActive {
		if _, err := tx.Exec(ctx, `
      UPDATE performance_cycles SET status = 'inactive', updated_at = now()
      WHERE status = 'active' AND id <> $1
    `, cycleID); err != nil {
			return false, err
		}
	}

	tag, err := tx.Exec(ctx, `
    UPDATE performance_cycles
    SET name = $1,
        start_date = $2,
        end_date = $3,
        status = $4,
        description = $5,
        updated_at = now()
    WHERE id = $6
  `, c.Name, c.StartDate, c.EndDate, c.Status, nullIfEmpty(c.Description), cycleID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) IsReferenced(ctx context.Context, cycleID string) (bool, error) {
	var referenced bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM reviewer_selections WHERE performance_cycle_id = $1)
        OR EXISTS (SELECT 1 FROM feedback_forms WHERE performance_cycle_id = $1)
  `, cycleID).Scan(&referenced)
	if err != nil {
		return false, err
	}
	return referenced, nil
}

func (s *Store) Delete(ctx context.Context, cycleID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, "DELETE FROM performance_cycles WHERE id = $1", cycleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
