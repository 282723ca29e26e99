package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"fmt"
	"sort"
	"time"
)

// ResolutionService closes auctions past their end date and settles bid statuses.
// It is the only producer of the ended_* auction states.
type ResolutionService struct {
	repo     repository.AuctionDB
	notifier notifier.Notifier
	cfg      settings
}

// NewResolutionService creates a new ResolutionService instance
func NewResolutionService(repo repository.AuctionDB, n notifier.Notifier, opts ...Option) *ResolutionService {
	if n == nil {
		n = notifier.LogNotifier{}
	}
	return &ResolutionService{
		repo:     repo,
		notifier: n,
		cfg:      newSettings(opts),
	}
}

// ResolveAuction settles an active auction whose end date has passed.
// An auction that is no longer active is returned unchanged, so repeated
// calls are no-ops.
func (s *ResolutionService) ResolveAuction(ctx context.Context, auctionID uint64) (models.Auction, error) {
	if auctionID == 0 {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	var (
		resolved models.Auction
		changed  bool
	)
	err := s.cfg.retry(ctx, "resolve auction", func(ctx context.Context) error {
		changed = false
		return s.repo.WithAuctionLock(ctx, auctionID, func(tx repository.AuctionTx) error {
			var err error
			resolved, changed, err = s.resolveLocked(tx)
			return err
		})
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: resolve auction %d: %w", auctionID, err)
	}

	if changed {
		s.publishEnded(ctx, resolved)
	}
	return resolved, nil
}

func (s *ResolutionService) resolveLocked(tx repository.AuctionTx) (models.Auction, bool, error) {
	now := s.cfg.now()
	auction := tx.Auction()

	if auction.Status != models.AuctionActive {
		return auction, false, nil
	}
	if now.Before(auction.EndDate) {
		return auction, false, fmt.Errorf("%w - ends at %s", biddingerrors.ErrAuctionNotEnded, auction.EndDate.Format(time.RFC3339))
	}

	bids, err := tx.ActiveBids()
	if err != nil {
		return auction, false, err
	}
	status, winner := DetermineOutcome(auction, bids)
	if !auction.Status.CanTransitionTo(status) {
		return auction, false, fmt.Errorf("illegal transition %s -> %s", auction.Status, status)
	}

	for _, b := range bids {
		if winner != nil && b.ID == winner.ID {
			b.Win()
		} else {
			b.Outbid()
		}
		if err := tx.SaveBid(b); err != nil {
			return auction, false, err
		}
	}

	auction.Status = status
	auction.WinnerID = nil
	auction.WinningBidAmount = nil
	if winner != nil {
		userID, amount := winner.UserID, winner.Amount
		auction.WinnerID = &userID
		auction.WinningBidAmount = &amount
	}
	if err := tx.SaveAuction(auction); err != nil {
		return auction, false, err
	}
	return auction, true, nil
}

// DetermineOutcome picks the final status and winning bid from the active bids.
// Highest amount wins; on an exact tie the earliest bid wins. A top bid under
// the reserve price ends the auction without a winner.
func DetermineOutcome(auction models.Auction, active []models.Bid) (models.AuctionStatus, *models.Bid) {
	if len(active) == 0 {
		return models.AuctionEndedNoWinner, nil
	}

	ranked := append([]models.Bid(nil), active...)
	sort.SliceStable(ranked, func(i, j int) bool { return models.RankBefore(ranked[i], ranked[j]) })

	top := ranked[0]
	if auction.ReservePrice != nil && top.Amount.LessThan(*auction.ReservePrice) {
		return models.AuctionEndedReserveNotMet, nil
	}
	return models.AuctionEndedSold, &top
}

func (s *ResolutionService) publishEnded(ctx context.Context, auction models.Auction) {
	pubCtx, cancel := s.cfg.publishContext(ctx)
	defer cancel()

	if err := s.notifier.AuctionEnded(pubCtx, models.AuctionEndedFrom(auction)); err != nil {
		utils.Error("service: failed to publish AuctionEnded", map[string]any{
			"auction_id": auction.ID,
			"status":     auction.Status,
			"error":      err.Error(),
		})
	}
}
