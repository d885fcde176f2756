// Package txn runs multi-step mutations inside a single database transaction.
package txn

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Beginner abstracts transaction creation so callers don't need a pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Run executes fn inside one transaction. Any error from fn, or a failed commit,
// rolls back every write fn made; nothing is committed partially.
func Run(ctx context.Context, db Beginner, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db, fn)
}
