package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const commandMaxAttempts = 25

// JobClient is the subset of river.Client[pgx.Tx] used for scheduling.
type JobClient interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
	JobCancelTx(ctx context.Context, tx pgx.Tx, jobID int64) (*rivertype.JobRow, error)
}

// River schedules commands as River jobs with ScheduledAt and indexes them by key.
// The job client is attached after construction because River's workers depend
// on services that in turn depend on the scheduler.
type River struct {
	mu     sync.RWMutex
	client JobClient
	index  Index
	log    *slog.Logger
}

func NewRiver(index Index, log *slog.Logger) *River {
	if log == nil {
		log = slog.Default()
	}
	return &River{index: index, log: log}
}

// Attach wires the River client once it exists.
func (s *River) Attach(client JobClient) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
}

func (s *River) jobClient() (JobClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, errors.New("scheduler: river client not attached")
	}
	return s.client, nil
}

func (s *River) ScheduleOnce(ctx context.Context, tx pgx.Tx, key string, fireAt time.Time, cmd Command) error {
	client, err := s.jobClient()
	if err != nil {
		return err
	}
	if err := s.cancel(ctx, tx, client, key); err != nil {
		return err
	}
	res, err := client.InsertTx(ctx, tx, cmd, &river.InsertOpts{
		ScheduledAt: fireAt,
		MaxAttempts: commandMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("insert %s job: %w", cmd.Kind(), err)
	}
	if err := s.index.Put(ctx, tx, Entry{Key: key, JobID: res.Job.ID, Kind: cmd.Kind(), FireAt: fireAt}); err != nil {
		return fmt.Errorf("index scheduled command %q: %w", key, err)
	}
	s.log.Debug("scheduled command", "key", key, "kind", cmd.Kind(), "job_id", res.Job.ID, "fire_at", fireAt)
	return nil
}

func (s *River) Cancel(ctx context.Context, tx pgx.Tx, key string) error {
	client, err := s.jobClient()
	if err != nil {
		return err
	}
	return s.cancel(ctx, tx, client, key)
}

func (s *River) cancel(ctx context.Context, tx pgx.Tx, client JobClient, key string) error {
	entry, err := s.index.Take(ctx, tx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup scheduled command %q: %w", key, err)
	}
	if _, err := client.JobCancelTx(ctx, tx, entry.JobID); err != nil && !errors.Is(err, rivertype.ErrNotFound) {
		return fmt.Errorf("cancel job %d for %q: %w", entry.JobID, key, err)
	}
	s.log.Debug("canceled command", "key", key, "job_id", entry.JobID)
	return nil
}

func (s *River) Complete(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := s.index.Take(ctx, tx, key); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("complete scheduled command %q: %w", key, err)
	}
	return nil
}

func (s *River) Scheduled(ctx context.Context, key string) (bool, error) {
	_, err := s.index.Get(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ Scheduler = (*River)(nil)
