package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", utils.ErrFields(err, nil))
}

// ParseAuctionID reads the :auction_id path parameter
func ParseAuctionID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("auction_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w - invalid auction id %q", biddingerrors.ErrInvalidBid, c.Param("auction_id"))
	}
	return id, nil
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusUnprocessableEntity, "auction is not active"
	case errors.Is(err, biddingerrors.ErrOutsideBiddingWindow):
		return http.StatusUnprocessableEntity, "auction is outside its bidding window"
	case errors.Is(err, biddingerrors.ErrSelfBid):
		return http.StatusForbidden, "cannot bid on your own auction"
	case errors.Is(err, biddingerrors.ErrAuctionNotEnded):
		return http.StatusConflict, "auction has not ended yet"
	case errors.Is(err, biddingerrors.ErrTransientFailure):
		return http.StatusServiceUnavailable, "auction is busy, please retry"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no auctions found for user"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RejectionFor describes how a client should react to a failed bid:
// refresh the price and retry, or stop bidding.
func RejectionFor(err error) BidRejection {
	var low *biddingerrors.BidTooLowError
	if errors.As(err, &low) {
		minimum := low.Minimum
		return BidRejection{MinimumBid: &minimum, CanRetry: true}
	}
	return BidRejection{CanRetry: errors.Is(err, biddingerrors.ErrTransientFailure)}
}

// ToBidResponse converts a bid to its wire shape
func ToBidResponse(bid models.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.ID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		Status:    string(bid.Status),
		IsWinning: bid.IsWinning,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
