package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionPending            AuctionStatus = "pending"
	AuctionActive             AuctionStatus = "active"
	AuctionEndedSold          AuctionStatus = "ended_sold"
	AuctionEndedNoWinner      AuctionStatus = "ended_no_winner"
	AuctionEndedReserveNotMet AuctionStatus = "ended_reserve_not_met"
	AuctionCancelled          AuctionStatus = "cancelled"
)

// IsTerminal reports whether no transition may leave the status
func (s AuctionStatus) IsTerminal() bool {
	switch s {
	case AuctionEndedSold, AuctionEndedNoWinner, AuctionEndedReserveNotMet, AuctionCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is a legal forward move.
// Terminal states are absorbing and an ended auction is never reopened.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	switch s {
	case AuctionPending:
		return next == AuctionActive || next == AuctionCancelled
	case AuctionActive:
		return next.IsTerminal()
	}
	return false
}

// BidStatus is the lifecycle state of a single bid
type BidStatus string

const (
	BidActive    BidStatus = "active"
	BidOutbid    BidStatus = "outbid"
	BidWinner    BidStatus = "winner"
	BidCancelled BidStatus = "cancelled"
)

// Auction holds the terms and current state of one auction
type Auction struct {
	ID                   uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID            string           `json:"product_id" gorm:"size:64;not null"`
	CreatorID            string           `json:"creator_id" gorm:"size:64;not null"`
	StartingPrice        decimal.Decimal  `json:"starting_price" gorm:"type:decimal(15,2);not null"`
	CurrentPrice         *decimal.Decimal `json:"current_price" gorm:"type:decimal(15,2)"`
	ReservePrice         *decimal.Decimal `json:"reserve_price" gorm:"type:decimal(15,2)"`
	BidIncrementAmount   decimal.Decimal  `json:"bid_increment_amount" gorm:"type:decimal(15,2);not null"`
	StartDate            time.Time        `json:"start_date" gorm:"not null"`
	EndDate              time.Time        `json:"end_date" gorm:"not null;index:idx_auctions_status_end,priority:2"`
	Status               AuctionStatus    `json:"status" gorm:"size:32;not null;index:idx_auctions_status_end,priority:1"`
	WinnerID             *string          `json:"winner_id" gorm:"size:64"`
	WinningBidAmount     *decimal.Decimal `json:"winning_bid_amount" gorm:"type:decimal(15,2)"`
	AutoExtendOnBid      bool             `json:"auto_extend_on_bid" gorm:"not null;default:false"`
	ExtensionTimeMinutes int              `json:"extension_time_minutes" gorm:"not null;default:0"`
	BidsCount            int              `json:"bids_count" gorm:"not null;default:0"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	Bids                 []Bid            `json:"-" gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
}

// MoneyScale is the number of fractional digits stored for every amount
const MoneyScale = 2

// smallestStep is one unit at MoneyScale
var smallestStep = decimal.New(1, -MoneyScale)

// IsMoney reports whether d is representable at MoneyScale without rounding
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// MinimumNextBid returns the lowest amount the next bid may carry, rounded up
// to MoneyScale. Once a bid exists the next one must be strictly higher even
// when the increment is zero.
func (a Auction) MinimumNextBid() decimal.Decimal {
	step := a.BidIncrementAmount
	if !step.IsPositive() {
		step = decimal.Zero
	}
	base := a.StartingPrice
	if a.CurrentPrice != nil {
		base = *a.CurrentPrice
		if step.IsZero() {
			step = smallestStep
		}
	}
	return base.Add(step).RoundCeil(MoneyScale)
}

// InBiddingWindow reports whether t falls inside [StartDate, EndDate]
func (a Auction) InBiddingWindow(t time.Time) bool {
	return !t.Before(a.StartDate) && !t.After(a.EndDate)
}

// Bid is a single offer against an auction
type Bid struct {
	ID               uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	AuctionID        uint64           `json:"auction_id" gorm:"not null;index:idx_bids_auction_status,priority:1"`
	UserID           string           `json:"user_id" gorm:"size:64;not null;index"`
	Amount           decimal.Decimal  `json:"amount" gorm:"type:decimal(15,2);not null"`
	IsAutoBid        bool             `json:"is_auto_bid" gorm:"not null;default:false"`
	MaxAutoBidAmount *decimal.Decimal `json:"max_auto_bid_amount,omitempty" gorm:"type:decimal(15,2)"`
	Status           BidStatus        `json:"status" gorm:"size:16;not null;index:idx_bids_auction_status,priority:2"`
	IsWinning        bool             `json:"is_winning" gorm:"not null;default:false"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Outbid demotes the bid after a higher one has been accepted or the auction closed
func (b *Bid) Outbid() {
	b.Status = BidOutbid
	b.IsWinning = false
}

// Win marks the bid as the auction's final winner
func (b *Bid) Win() {
	b.Status = BidWinner
	b.IsWinning = true
}

// RankBefore orders bids for winner selection: highest amount first,
// earliest placement on an exact tie, then lowest id.
func RankBefore(a, b Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
