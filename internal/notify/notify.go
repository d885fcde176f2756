// Package notify hands domain events to the notification collaborator.
// Publishing is best effort: callers log failures and never roll back on them.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

type Notifier interface {
	Publish(ctx context.Context, evt models.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.Event) error { return nil }

// Fanout publishes to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Publish(ctx context.Context, evt models.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAll publishes events in order and logs, rather than returns, failures.
func PublishAll(ctx context.Context, n Notifier, log *slog.Logger, events ...models.Event) {
	if n == nil {
		return
	}
	for _, evt := range events {
		if err := n.Publish(ctx, evt); err != nil {
			log.Warn("publish event failed", "type", evt.Type, "aggregate_id", evt.AggregateID, "error", err)
		}
	}
}
