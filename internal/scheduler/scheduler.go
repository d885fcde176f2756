// Package scheduler issues durable, cancelable deferred commands. Commands are
// written in the same transaction as the state change that requires them, so
// they survive restarts and never exist without their aggregate.
package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// Command is the payload delivered when a scheduled key fires.
type Command = river.JobArgs

// Scheduler registers and cancels deferred commands by key. Delivery is
// at-least-once; receivers must be idempotent.
type Scheduler interface {
	// ScheduleOnce registers cmd to fire at fireAt, replacing any command already
	// registered under key.
	ScheduleOnce(ctx context.Context, tx pgx.Tx, key string, fireAt time.Time, cmd Command) error
	// Cancel withdraws the command registered under key. Unknown keys are a no-op.
	Cancel(ctx context.Context, tx pgx.Tx, key string) error
	// Complete forgets key after its command has been handled, without touching
	// the (possibly running) job.
	Complete(ctx context.Context, tx pgx.Tx, key string) error
	// Scheduled reports whether a command is currently registered under key.
	Scheduled(ctx context.Context, key string) (bool, error)
}

// Entry is one row of the scheduled-command index.
type Entry struct {
	Key    string
	JobID  int64
	Kind   string
	FireAt time.Time
}

// Index persists key -> job id so commands can be canceled by key.
type Index interface {
	Put(ctx context.Context, tx pgx.Tx, e Entry) error
	// Take deletes and returns the entry for key, or pgx.ErrNoRows.
	Take(ctx context.Context, tx pgx.Tx, key string) (*Entry, error)
	Get(ctx context.Context, key string) (*Entry, error)
}
