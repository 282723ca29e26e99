package notifier

import (
	"auction-engine/internal/models"
	"auction-engine/utils"
	"context"
)

// LogNotifier writes every event to the structured application log
type LogNotifier struct{}

func (LogNotifier) NewBidPlaced(_ context.Context, event models.NewBidPlacedEvent) error {
	utils.Info("event: new bid placed", map[string]any{
		"auction_id":    event.AuctionID,
		"bid_id":        event.Bid.ID,
		"user_id":       event.Bid.UserID,
		"amount":        event.Bid.Amount.String(),
		"current_price": event.CurrentPrice.String(),
		"bids_count":    event.BidsCount,
		"end_date":      event.EndDate,
	})
	return nil
}

func (LogNotifier) AuctionEnded(_ context.Context, event models.AuctionEndedEvent) error {
	fields := map[string]any{
		"auction_id": event.AuctionID,
		"status":     event.Status,
		"product_id": event.ProductID,
	}
	if event.WinnerID != nil {
		fields["winner_id"] = *event.WinnerID
	}
	if event.WinningBidAmount != nil {
		fields["winning_bid_amount"] = event.WinningBidAmount.String()
	}
	utils.Info("event: auction ended", fields)
	return nil
}
