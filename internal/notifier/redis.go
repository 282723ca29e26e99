package notifier

import (
	"auction-engine/internal/models"
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes events on a per-auction pub/sub channel so that
// live bid feeds (websocket gateways, dashboards) can follow an auction.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

// NewRedisBroadcaster returns a broadcaster publishing to "<prefix>:<auction_id>"
func NewRedisBroadcaster(client *redis.Client, prefix string) *RedisBroadcaster {
	if prefix == "" {
		prefix = "auction"
	}
	return &RedisBroadcaster{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel for one auction
func (b *RedisBroadcaster) Channel(auctionID uint64) string {
	return fmt.Sprintf("%s:%d", b.prefix, auctionID)
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (b *RedisBroadcaster) NewBidPlaced(ctx context.Context, event models.NewBidPlacedEvent) error {
	return b.publish(ctx, event.AuctionID, envelope{Type: "NewBidPlaced", Payload: event})
}

func (b *RedisBroadcaster) AuctionEnded(ctx context.Context, event models.AuctionEndedEvent) error {
	return b.publish(ctx, event.AuctionID, envelope{Type: "AuctionEnded", Payload: event})
}

func (b *RedisBroadcaster) publish(ctx context.Context, auctionID uint64, msg envelope) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", msg.Type, err)
	}
	if err := b.client.Publish(ctx, b.Channel(auctionID), body).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", msg.Type, err)
	}
	return nil
}
