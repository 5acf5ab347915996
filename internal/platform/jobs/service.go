package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sweeper deletes rows whose purpose has passed: expired or revoked
// sessions, spent password reset tokens, and idempotency keys older than
// the replay window. A failed sweep logs and waits for the next tick.
type Sweeper struct {
	DB             *pgxpool.Pool
	Interval       time.Duration
	IdempotencyTTL time.Duration
}

type SweepResult struct {
	Sessions        int64
	PasswordResets  int64
	IdempotencyKeys int64
}

func NewSweeper(db *pgxpool.Pool, interval, idempotencyTTL time.Duration) *Sweeper {
	return &Sweeper{DB: db, Interval: interval, IdempotencyTTL: idempotencyTTL}
}

// Start launches the sweep loop. An interval of zero disables it.
func (s *Sweeper) Start(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.SweepOnce(ctx)
			if err != nil {
				slog.Warn("maintenance sweep failed", "err", err)
				continue
			}
			if result.Sessions+result.PasswordResets+result.IdempotencyKeys > 0 {
				slog.Info("maintenance sweep",
					"sessions", result.Sessions,
					"passwordResets", result.PasswordResets,
					"idempotencyKeys", result.IdempotencyKeys)
			}
		}
	}
}

// SweepOnce runs every deletion and reports what went. Sessions get a day
// of grace past expiry so a refresh racing the sweep still finds its row
// and fails on the expiry check, not on a missing session.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	tag, err := s.DB.Exec(ctx, `
    DELETE FROM sessions
    WHERE expires_at < now() - INTERVAL '24 hours'
       OR revoked_at < now() - INTERVAL '24 hours'
  `)
	if err != nil {
		return result, err
	}
	result.Sessions = tag.RowsAffected()

	tag, err = s.DB.Exec(ctx, `
    DELETE FROM password_resets
    WHERE expires_at < now() OR used_at IS NOT NULL
  `)
	if err != nil {
		return result, err
	}
	result.PasswordResets = tag.RowsAffected()

	tag, err = s.DB.Exec(ctx, `
    DELETE FROM idempotency_keys WHERE created_at < $1
  `, time.Now().Add(-s.IdempotencyTTL))
	if err != nil {
		return result, err
	}
	result.IdempotencyKeys = tag.RowsAffected()

	return result, nil
}
