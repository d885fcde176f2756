package storetest

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/scheduler"
)

// Scheduler is a transactional in-memory scheduler. Commands registered in a
// rolled-back transaction disappear with it. Tests fire commands with Due.
type Scheduler struct{ s *Store }

func (s *Store) Scheduler() *Scheduler { return &Scheduler{s: s} }

func (r *Scheduler) ScheduleOnce(_ context.Context, tx pgx.Tx, key string, fireAt time.Time, cmd scheduler.Command) error {
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, had := d.schedule[key]
		d.nextJobID++
		d.schedule[key] = scheduled{
			entry: scheduler.Entry{Key: key, JobID: d.nextJobID, Kind: cmd.Kind(), FireAt: fireAt},
			cmd:   cmd,
		}
		return func(d *tables) {
			if had {
				d.schedule[key] = prev
			} else {
				delete(d.schedule, key)
			}
		}
	})
	return nil
}

func (r *Scheduler) Cancel(_ context.Context, tx pgx.Tx, key string) error {
	r.remove(tx, key)
	return nil
}

func (r *Scheduler) Complete(_ context.Context, tx pgx.Tx, key string) error {
	r.remove(tx, key)
	return nil
}

func (r *Scheduler) remove(tx pgx.Tx, key string) {
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, ok := d.schedule[key]
		if !ok {
			return nil
		}
		delete(d.schedule, key)
		return func(d *tables) { d.schedule[key] = prev }
	})
}

func (r *Scheduler) Scheduled(_ context.Context, key string) (bool, error) {
	var ok bool
	r.s.read(func(d *tables) { _, ok = d.schedule[key] })
	return ok, nil
}

// Lookup returns the command registered under key.
func (r *Scheduler) Lookup(key string) (scheduler.Entry, scheduler.Command, bool) {
	var sc scheduled
	var ok bool
	r.s.read(func(d *tables) { sc, ok = d.schedule[key] })
	return sc.entry, sc.cmd, ok
}

// Due returns the commands whose fire time is at or before now, earliest first.
// They stay registered; delivery is at-least-once.
func (r *Scheduler) Due(now time.Time) []scheduler.Command {
	var due []scheduled
	r.s.read(func(d *tables) {
		for _, sc := range d.schedule {
			if !sc.entry.FireAt.After(now) {
				due = append(due, sc)
			}
		}
	})
	sort.Slice(due, func(i, j int) bool { return due[i].entry.FireAt.Before(due[j].entry.FireAt) })
	out := make([]scheduler.Command, len(due))
	for i, sc := range due {
		out[i] = sc.cmd
	}
	return out
}

// Index is the scheduled-command index view of a Store, for the River scheduler.
type Index struct{ s *Store }

func (s *Store) Index() *Index { return &Index{s: s} }

func (r *Index) Put(_ context.Context, tx pgx.Tx, e scheduler.Entry) error {
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, had := d.schedule[e.Key]
		d.schedule[e.Key] = scheduled{entry: e}
		return func(d *tables) {
			if had {
				d.schedule[e.Key] = prev
			} else {
				delete(d.schedule, e.Key)
			}
		}
	})
	return nil
}

func (r *Index) Take(_ context.Context, tx pgx.Tx, key string) (*scheduler.Entry, error) {
	var out *scheduler.Entry
	r.s.write(tx, func(d *tables) func(*tables) {
		prev, ok := d.schedule[key]
		if !ok {
			return nil
		}
		e := prev.entry
		out = &e
		delete(d.schedule, key)
		return func(d *tables) { d.schedule[key] = prev }
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (r *Index) Get(_ context.Context, key string) (*scheduler.Entry, error) {
	var out *scheduler.Entry
	r.s.read(func(d *tables) {
		if sc, ok := d.schedule[key]; ok {
			e := sc.entry
			out = &e
		}
	})
	if out == nil {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}
