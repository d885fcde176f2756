package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomurashigaraki22/ripple-marketplace-sub002/internal/models"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// LiveBids pushes bid and auction events to Redis Pub/Sub channel
// bid_events:<listing id> for real-time viewers. Other events are ignored.
// The channel is a broadcast only; bid state lives on the listing row.
type LiveBids struct {
	rdb redisPublisher
}

func NewLiveBids(rdb *redis.Client) *LiveBids {
	return &LiveBids{rdb: rdb}
}

var liveBidEvents = map[string]bool{
	models.EventBidPlaced:           true,
	models.EventBidOutbid:           true,
	models.EventAuctionWon:          true,
	models.EventAuctionClosedNoSale: true,
	models.EventAuctionCancelled:    true,
}

func (p *LiveBids) Publish(ctx context.Context, evt models.Event) error {
	if !liveBidEvents[evt.Type] {
		return nil
	}
	// Viewers see amounts and status, never wallet addresses or recipients.
	payload, err := json.Marshal(struct {
		Type       string            `json:"type"`
		ListingID  string            `json:"listing_id"`
		Data       map[string]string `json:"data,omitempty"`
		OccurredAt string            `json:"occurred_at"`
	}{evt.Type, evt.AggregateID.String(), publicData(evt.Data), evt.OccurredAt.Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("marshal live bid event: %w", err)
	}
	channel := fmt.Sprintf("bid_events:%s", evt.AggregateID)
	return p.rdb.Publish(ctx, channel, payload).Err()
}

func publicData(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if k == "wallet_address" {
			continue
		}
		out[k] = v
	}
	return out
}
