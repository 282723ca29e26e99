package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidSummary is the bid portion of a NewBidPlaced event
type BidSummary struct {
	ID        uint64          `json:"id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewBidPlacedEvent is emitted once after a bid commits
type NewBidPlacedEvent struct {
	AuctionID    uint64          `json:"auction_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	BidsCount    int             `json:"bids_count"`
	EndDate      time.Time       `json:"end_date"`
	Bid          BidSummary      `json:"bid"`
}

// AuctionEndedEvent is emitted once after an auction is resolved
type AuctionEndedEvent struct {
	AuctionID        uint64           `json:"auction_id"`
	Status           AuctionStatus    `json:"status"`
	WinnerID         *string          `json:"winner_id"`
	WinningBidAmount *decimal.Decimal `json:"winning_bid_amount"`
	ProductID        string           `json:"product_id"`
}

// NewBidPlacedFrom builds the event from the committed auction and bid
func NewBidPlacedFrom(a Auction, b Bid) NewBidPlacedEvent {
	price := b.Amount
	if a.CurrentPrice != nil {
		price = *a.CurrentPrice
	}
	return NewBidPlacedEvent{
		AuctionID:    a.ID,
		CurrentPrice: price,
		BidsCount:    a.BidsCount,
		EndDate:      a.EndDate,
		Bid: BidSummary{
			ID:        b.ID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			CreatedAt: b.CreatedAt,
		},
	}
}

// AuctionEndedFrom builds the event from a resolved auction
func AuctionEndedFrom(a Auction) AuctionEndedEvent {
	return AuctionEndedEvent{
		AuctionID:        a.ID,
		Status:           a.Status,
		WinnerID:         a.WinnerID,
		WinningBidAmount: a.WinningBidAmount,
		ProductID:        a.ProductID,
	}
}
