package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
)

// ScheduleRepo maps scheduled-command keys to the River job that carries them.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

var _ scheduler.Index = (*ScheduleRepo)(nil)

func (r *ScheduleRepo) Put(ctx context.Context, tx pgx.Tx, e scheduler.Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO scheduled_commands (key, job_id, kind, fire_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET job_id = EXCLUDED.job_id, kind = EXCLUDED.kind,
			fire_at = EXCLUDED.fire_at, updated_at = now()
	`, e.Key, e.JobID, e.Kind, e.FireAt)
	return err
}

// Take deletes the entry for key and returns it, or pgx.ErrNoRows.
func (r *ScheduleRepo) Take(ctx context.Context, tx pgx.Tx, key string) (*scheduler.Entry, error) {
	var e scheduler.Entry
	err := tx.QueryRow(ctx, `
		DELETE FROM scheduled_commands WHERE key = $1
		RETURNING key, job_id, kind, fire_at
	`, key).Scan(&e.Key, &e.JobID, &e.Kind, &e.FireAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *ScheduleRepo) Get(ctx context.Context, key string) (*scheduler.Entry, error) {
	var e scheduler.Entry
	err := r.pool.QueryRow(ctx, `
		SELECT key, job_id, kind, fire_at FROM scheduled_commands WHERE key = $1
	`, key).Scan(&e.Key, &e.JobID, &e.Kind, &e.FireAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
