// Package notifier delivers auction domain events to downstream consumers.
// Services call a Notifier only after their transaction has committed.
package notifier

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=notifier

import (
	"auction-engine/internal/models"
	"context"
	"errors"
)

// Notifier receives committed auction events
type Notifier interface {
	NewBidPlaced(ctx context.Context, event models.NewBidPlacedEvent) error
	AuctionEnded(ctx context.Context, event models.AuctionEndedEvent) error
}

// Fanout delivers every event to each wrapped notifier. A failing sink does
// not stop delivery to the others; all errors are joined.
type Fanout []Notifier

func (f Fanout) NewBidPlaced(ctx context.Context, event models.NewBidPlacedEvent) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.NewBidPlaced(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) AuctionEnded(ctx context.Context, event models.AuctionEndedEvent) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.AuctionEnded(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
