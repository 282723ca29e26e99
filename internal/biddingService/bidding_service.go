package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceBidInput carries one bid attempt
type PlaceBidInput struct {
	AuctionID uint64
	BidderID  string
	Amount    decimal.Decimal
	// Proxy-bid fields are stored with the bid; no automatic counter-bidding runs on them.
	IsAutoBid        bool
	MaxAutoBidAmount *decimal.Decimal
}

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo     repository.AuctionDB
	notifier notifier.Notifier
	cfg      settings
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, n notifier.Notifier, opts ...Option) *BiddingService {
	if n == nil {
		n = notifier.LogNotifier{}
	}
	return &BiddingService{
		repo:     repo,
		notifier: n,
		cfg:      newSettings(opts),
	}
}

// PlaceBid validates and commits a bid under the auction's lock, then emits NewBidPlaced
func (s *BiddingService) PlaceBid(ctx context.Context, in PlaceBidInput) (models.Bid, error) {
	if err := validateInput(in); err != nil {
		return models.Bid{}, err
	}

	var (
		auction models.Auction
		placed  models.Bid
	)
	err := s.cfg.retry(ctx, "place bid", func(ctx context.Context) error {
		return s.repo.WithAuctionLock(ctx, in.AuctionID, func(tx repository.AuctionTx) error {
			var err error
			auction, placed, err = s.placeLocked(tx, in)
			return err
		})
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: place bid on auction %d by user %s: %w", in.AuctionID, in.BidderID, err)
	}

	s.publishBid(ctx, auction, placed)
	return placed, nil
}

// placeLocked runs with the auction row locked. Checks run in a fixed order
// and any failure leaves the transaction uncommitted.
func (s *BiddingService) placeLocked(tx repository.AuctionTx, in PlaceBidInput) (models.Auction, models.Bid, error) {
	now := s.cfg.now()
	auction := tx.Auction()

	if auction.Status != models.AuctionActive {
		return auction, models.Bid{}, fmt.Errorf("%w - status is %s", biddingerrors.ErrAuctionNotActive, auction.Status)
	}
	if !auction.InBiddingWindow(now) {
		return auction, models.Bid{}, fmt.Errorf("%w - bidding runs from %s to %s",
			biddingerrors.ErrOutsideBiddingWindow, auction.StartDate.Format(time.RFC3339), auction.EndDate.Format(time.RFC3339))
	}
	if in.BidderID == auction.CreatorID {
		return auction, models.Bid{}, biddingerrors.ErrSelfBid
	}
	if minimum := auction.MinimumNextBid(); in.Amount.LessThan(minimum) {
		return auction, models.Bid{}, &biddingerrors.BidTooLowError{Minimum: minimum}
	}

	previous, err := tx.WinningBid()
	if err != nil {
		return auction, models.Bid{}, err
	}
	if previous != nil {
		previous.Outbid()
		if err := tx.SaveBid(*previous); err != nil {
			return auction, models.Bid{}, err
		}
	}

	bid := models.Bid{
		AuctionID:        auction.ID,
		UserID:           in.BidderID,
		Amount:           in.Amount,
		IsAutoBid:        in.IsAutoBid,
		MaxAutoBidAmount: in.MaxAutoBidAmount,
		Status:           models.BidActive,
		IsWinning:        true,
		CreatedAt:        now,
	}
	if err := tx.InsertBid(&bid); err != nil {
		return auction, models.Bid{}, err
	}

	price := in.Amount
	auction.CurrentPrice = &price
	auction.BidsCount++
	if end, ok := s.extendedEnd(auction, now); ok {
		auction.EndDate = end
	}
	if err := tx.SaveAuction(auction); err != nil {
		return auction, models.Bid{}, err
	}
	return auction, bid, nil
}

// extendedEnd applies anti-sniping. A bid inside the trigger window pushes
// the end to now + extension, never earlier than the current end.
func (s *BiddingService) extendedEnd(a models.Auction, now time.Time) (time.Time, bool) {
	if !a.AutoExtendOnBid || a.ExtensionTimeMinutes <= 0 {
		return a.EndDate, false
	}
	if now.Before(a.EndDate.Add(-s.cfg.triggerWindow)) {
		return a.EndDate, false
	}
	end := now.Add(time.Duration(a.ExtensionTimeMinutes) * time.Minute)
	if !end.After(a.EndDate) {
		return a.EndDate, false
	}
	return end, true
}

func (s *BiddingService) publishBid(ctx context.Context, auction models.Auction, bid models.Bid) {
	pubCtx, cancel := s.cfg.publishContext(ctx)
	defer cancel()

	if err := s.notifier.NewBidPlaced(pubCtx, models.NewBidPlacedFrom(auction, bid)); err != nil {
		utils.Error("service: failed to publish NewBidPlaced", map[string]any{
			"auction_id": auction.ID,
			"bid_id":     bid.ID,
			"error":      err.Error(),
		})
	}
}

// validateInput checks request shape before any lock is taken
func validateInput(in PlaceBidInput) error {
	if in.AuctionID == 0 || in.BidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if !models.IsMoney(in.Amount) {
		return fmt.Errorf("service: %w - bid amount has more than %d decimal places", biddingerrors.ErrInvalidBid, models.MoneyScale)
	}
	if in.MaxAutoBidAmount != nil {
		if !models.IsMoney(*in.MaxAutoBidAmount) {
			return fmt.Errorf("service: %w - max auto bid amount has more than %d decimal places", biddingerrors.ErrInvalidBid, models.MoneyScale)
		}
		if in.MaxAutoBidAmount.LessThan(in.Amount) {
			return fmt.Errorf("service: %w - max auto bid amount below bid amount", biddingerrors.ErrInvalidBid)
		}
	}
	return nil
}

// GetAuction returns a single auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID uint64) (models.Auction, error) {
	if auctionID == 0 {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %d: %w", auctionID, err)
	}
	return auction, nil
}

// GetBidsForAuction returns all bids for a specific auction
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error) {
	if auctionID == 0 {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %d: %w", auctionID, err)
	}
	return bids, nil
}

// GetWinningBid returns the currently winning (or final winner) bid for an auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID uint64) (models.Bid, error) {
	if auctionID == 0 {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bid, err := s.repo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %d: %w", auctionID, err)
	}
	return bid, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", userID, err)
	}
	return auctions, nil
}
