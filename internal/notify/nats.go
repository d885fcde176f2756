package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

const (
	eventStream   = "MARKET_EVENTS"
	subjectPrefix = "market.events."
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStream publishes events to the durable MARKET_EVENTS stream on subject
// market.events.<type>. The event id is used as the message id so redeliveries
// from the publisher side are deduplicated by the server.
type JetStream struct {
	js streamPublisher
}

func NewJetStream(ctx context.Context, nc *nats.Conn) (*JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        eventStream,
		Description: "Escrow and auction domain events",
		Subjects:    []string{subjectPrefix + ">"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update stream %s: %w", eventStream, err)
	}
	return &JetStream{js: js}, nil
}

func (p *JetStream) Publish(ctx context.Context, evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subjectPrefix+evt.Type, data, jetstream.WithMsgID(evt.ID.String())); err != nil {
		return fmt.Errorf("publish %s to jetstream: %w", evt.Type, err)
	}
	return nil
}
