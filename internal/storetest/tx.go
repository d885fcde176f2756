// Package storetest is an in-memory implementation of every repository used by
// the ledger and the auction engine, for their tests; production code runs on
// Postgres. Its transactions take the same
// per-aggregate exclusive locks that SELECT ... FOR UPDATE takes in Postgres and
// hold them until Commit or Rollback; Rollback undoes every write made through
// the transaction. Reads outside a transaction see the latest writes.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errUnsupported = errors.New("storetest: operation not supported")

type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	data  *tables
}

func New() *Store {
	return &Store{locks: make(map[string]*sync.Mutex), data: newTables()}
}

// Begin starts a transaction. It satisfies txn.Beginner.
func (s *Store) Begin(context.Context) (pgx.Tx, error) {
	return &Tx{store: s, keys: make(map[string]bool)}, nil
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// write applies fn under the table mutex and records its undo on tx.
func (s *Store) write(tx pgx.Tx, fn func(d *tables) (undo func(d *tables))) {
	s.mu.Lock()
	undo := fn(s.data)
	s.mu.Unlock()
	if t, ok := tx.(*Tx); ok && t != nil && undo != nil {
		t.undo = append(t.undo, func() {
			s.mu.Lock()
			undo(s.data)
			s.mu.Unlock()
		})
	}
}

func (s *Store) read(fn func(d *tables)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// lockRow takes the row lock for key on tx. Locks are re-entrant per tx.
func lockRow(tx pgx.Tx, key string) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return
	}
	if t.keys[key] {
		return
	}
	m := t.store.lockFor(key)
	m.Lock()
	t.keys[key] = true
	t.held = append(t.held, m)
}

// Tx is an in-memory transaction. It is used by one goroutine at a time.
type Tx struct {
	store *Store
	keys  map[string]bool
	held  []*sync.Mutex
	undo  []func()
	done  bool
}

func (t *Tx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
	t.keys = nil
	t.done = true
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.undo = nil
	t.release()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.release()
	return nil
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) { return nil, errUnsupported }
func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}
func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}
func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnsupported
}
func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, errUnsupported }
func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row       { return nil }
func (t *Tx) Conn() *pgx.Conn                                         { return nil }

var _ pgx.Tx = (*Tx)(nil)
