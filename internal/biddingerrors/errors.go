package biddingerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrNoBids           = errors.New("no bids found for auction")
	ErrUserNoBids       = errors.New("user has not placed any bids")
	ErrTransientFailure = errors.New("transient storage failure")
)

// business logic errors
var (
	ErrInvalidBid           = errors.New("invalid bid")
	ErrBidTooLow            = errors.New("bid amount too low")
	ErrAuctionNotActive     = errors.New("auction not active")
	ErrOutsideBiddingWindow = errors.New("outside bidding window")
	ErrSelfBid              = errors.New("creator cannot bid on own auction")
	ErrAuctionNotEnded      = errors.New("auction has not reached its end date")
)

// BidTooLowError reports the minimum amount a retry must carry.
// It matches both ErrInvalidBid and ErrBidTooLow.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("amount below minimum: next bid must be at least %s", e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Unwrap() []error {
	return []error{ErrInvalidBid, ErrBidTooLow}
}

// IsTransient reports whether err may succeed on retry
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}
