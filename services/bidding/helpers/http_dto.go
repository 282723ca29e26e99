package helpers

import "github.com/shopspring/decimal"

// UserIDKey is the gin context key holding the authenticated user's ID
const UserIDKey = "user_id"

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount           decimal.Decimal  `json:"amount"`
	IsAutoBid        bool             `json:"is_auto_bid"`
	MaxAutoBidAmount *decimal.Decimal `json:"max_auto_bid_amount,omitempty"`
}

type BidResponse struct {
	BidID     uint64          `json:"bid_id"`
	AuctionID uint64          `json:"auction_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	IsWinning bool            `json:"is_winning"`
	CreatedAt string          `json:"created_at"`
}

// BidRejection tells the client what it can do after a rejected bid
type BidRejection struct {
	MinimumBid *decimal.Decimal `json:"minimum_bid,omitempty"`
	CanRetry   bool             `json:"can_retry"`
}
