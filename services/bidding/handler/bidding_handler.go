package handler

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_handler.go -package=handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, in bidding.PlaceBidInput) (models.Bid, error)
	GetAuction(ctx context.Context, auctionID uint64) (models.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID uint64) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error)
}

type AuctionResolverInterface interface {
	ResolveAuction(ctx context.Context, auctionID uint64) (models.Auction, error)
}

type BiddingHandler struct {
	service  BiddingServiceInterface
	resolver AuctionResolverInterface
}

func NewBiddingHandler(service BiddingServiceInterface, resolver AuctionResolverInterface) *BiddingHandler {
	return &BiddingHandler{service: service, resolver: resolver}
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	auctionID, err := helpers.ParseAuctionID(c)
	if err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}
	userID := c.GetString(helpers.UserIDKey)
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing authenticated user"), "unauthorized")
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), bidding.PlaceBidInput{
		AuctionID:        auctionID,
		BidderID:         userID,
		Amount:           req.Amount,
		IsAutoBid:        req.IsAutoBid,
		MaxAutoBidAmount: req.MaxAutoBidAmount,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONErrorWithData(c, status, fmt.Errorf("%s: %w", message, err), message, helpers.RejectionFor(err))
		utils.Warn("PlaceBidHandler: bid rejected", map[string]any{
			"handler":    "PlaceBidHandler",
			"auction_id": auctionID,
			"user_id":    userID,
			"amount":     req.Amount.String(),
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.ID,
		"auction_id": bid.AuctionID,
		"user_id":    userID,
		"amount":     bid.Amount.String(),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID, err := helpers.ParseAuctionID(c)
	if err != nil {
		helpers.HandleBindError(c, "GetAuctionHandler", err)
		return
	}

	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", utils.ErrFields(err, map[string]any{"auction_id": auctionID}))
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID, err := helpers.ParseAuctionID(c)
	if err != nil {
		helpers.HandleBindError(c, "GetBidsByAuctionHandler", err)
		return
	}

	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", utils.ErrFields(err, map[string]any{"auction_id": auctionID}))
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID, err := helpers.ParseAuctionID(c)
	if err != nil {
		helpers.HandleBindError(c, "GetWinningBidHandler", err)
		return
	}

	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		// For auction, winning bid not found -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetWinningBidHandler: winning bid error", utils.ErrFields(err, map[string]any{"auction_id": auctionID}))
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
}

// ResolveAuctionHandler handles POST /auctions/:auction_id/resolve
func (h *BiddingHandler) ResolveAuctionHandler(c *gin.Context) {
	auctionID, err := helpers.ParseAuctionID(c)
	if err != nil {
		helpers.HandleBindError(c, "ResolveAuctionHandler", err)
		return
	}

	auction, err := h.resolver.ResolveAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ResolveAuctionHandler: resolution failed", utils.ErrFields(err, map[string]any{"auction_id": auctionID}))
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction resolved")
	helpers.LogSuccess("ResolveAuctionHandler", "auction resolved", map[string]any{
		"auction_id": auction.ID,
		"status":     auction.Status,
	})
}

// GetAuctionsByUserHandler handles GET /users/:user_id/auctions
func (h *BiddingHandler) GetAuctionsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionsByUserHandler: error retrieving auctions", utils.ErrFields(err, map[string]any{"user_id": userID}))
		return
	}

	if auctions == nil {
		auctions = []models.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByUserHandler", "auctions retrieved successfully", map[string]any{
		"user_id":        userID,
		"auctions_count": len(auctions),
	})
}
