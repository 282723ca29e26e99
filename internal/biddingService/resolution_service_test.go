package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// seedBids places bids through the service while the auction is open,
// then moves the clock past the end date for resolution.
func seedBids(t *testing.T, repo *repository.MemoryRepo, a models.Auction, bids ...PlaceBidInput) {
	t.Helper()
	svc := NewBiddingService(repo, nil, WithClock(fixedClock()))
	for _, in := range bids {
		in.AuctionID = a.ID
		_, err := svc.PlaceBid(context.Background(), in)
		require.NoError(t, err)
	}
}

func afterEnd(a models.Auction) func() time.Time {
	return func() time.Time { return a.EndDate.Add(time.Second) }
}

func TestResolutionService_ResolveAuction_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		reserve     string
		bids        []PlaceBidInput
		wantStatus  models.AuctionStatus
		wantWinner  string
		wantAmount  string
		wantWinners int
	}{
		{
			name:       "no_bids",
			wantStatus: models.AuctionEndedNoWinner,
		},
		{
			name:        "highest_bid_wins",
			bids:        []PlaceBidInput{bidInput(0, "user1", "105"), bidInput(0, "user2", "130")},
			wantStatus:  models.AuctionEndedSold,
			wantWinner:  "user2",
			wantAmount:  "130",
			wantWinners: 1,
		},
		{
			name:        "reserve_met",
			reserve:     "120",
			bids:        []PlaceBidInput{bidInput(0, "user1", "120")},
			wantStatus:  models.AuctionEndedSold,
			wantWinner:  "user1",
			wantAmount:  "120",
			wantWinners: 1,
		},
		{
			name:       "reserve_not_met",
			reserve:    "200",
			bids:       []PlaceBidInput{bidInput(0, "user1", "105"), bidInput(0, "user2", "150")},
			wantStatus: models.AuctionEndedReserveNotMet,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := repository.NewMemoryRepo()
			a := activeAuction()
			if tc.reserve != "" {
				a.ReservePrice = decPtr(tc.reserve)
			}
			a = repo.AddAuction(a)
			seedBids(t, repo, a, tc.bids...)

			service := NewResolutionService(repo, nil, WithClock(afterEnd(a)))
			resolved, err := service.ResolveAuction(context.Background(), a.ID)
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, resolved.Status)

			if tc.wantWinner == "" {
				require.Nil(t, resolved.WinnerID)
				require.Nil(t, resolved.WinningBidAmount)
			} else {
				require.Equal(t, tc.wantWinner, *resolved.WinnerID)
				require.True(t, resolved.WinningBidAmount.Equal(dec(tc.wantAmount)))
			}

			stored, err := repo.GetAuction(context.Background(), a.ID)
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, stored.Status)

			if len(tc.bids) == 0 {
				return
			}
			bids, err := repo.GetBidsByAuction(context.Background(), a.ID)
			require.NoError(t, err)
			winners := 0
			for _, b := range bids {
				require.NotEqual(t, models.BidActive, b.Status, "no bid stays active after resolution")
				if b.Status == models.BidWinner {
					winners++
					require.Equal(t, tc.wantWinner, b.UserID)
					require.True(t, b.IsWinning)
				} else {
					require.Equal(t, models.BidOutbid, b.Status)
					require.False(t, b.IsWinning)
				}
			}
			require.Equal(t, tc.wantWinners, winners)
		})
	}
}

func TestResolutionService_ResolveAuction_NotEnded(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	a := repo.AddAuction(activeAuction())

	service := NewResolutionService(repo, nil, WithClock(fixedClock()))
	_, err := service.ResolveAuction(context.Background(), a.ID)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotEnded)

	stored, err := repo.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionActive, stored.Status)
}

func TestResolutionService_ResolveAuction_Idempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMemoryRepo()
	a := repo.AddAuction(activeAuction())
	seedBids(t, repo, a, bidInput(0, "user1", "105"))

	mockNotifier := notifier.NewMockNotifier(ctrl)
	mockNotifier.EXPECT().AuctionEnded(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.AuctionEndedEvent) error {
			require.Equal(t, a.ID, e.AuctionID)
			require.Equal(t, models.AuctionEndedSold, e.Status)
			require.Equal(t, "user1", *e.WinnerID)
			require.Equal(t, "product1", e.ProductID)
			return nil
		}).Times(1)

	service := NewResolutionService(repo, mockNotifier, WithClock(afterEnd(a)))

	first, err := service.ResolveAuction(context.Background(), a.ID)
	require.NoError(t, err)
	second, err := service.ResolveAuction(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, *first.WinnerID, *second.WinnerID)
}

func TestResolutionService_ResolveAuction_ConcurrentCallsEmitOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMemoryRepo()
	a := repo.AddAuction(activeAuction())
	seedBids(t, repo, a, bidInput(0, "user1", "105"), bidInput(0, "user2", "110"))

	mockNotifier := notifier.NewMockNotifier(ctrl)
	mockNotifier.EXPECT().AuctionEnded(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	service := NewResolutionService(repo, mockNotifier, WithClock(afterEnd(a)))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ResolveAuction(context.Background(), a.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bids, err := repo.GetBidsByAuction(context.Background(), a.ID)
	require.NoError(t, err)
	winners := 0
	for _, b := range bids {
		if b.Status == models.BidWinner {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestResolutionService_ResolveAuction_TerminalUnchanged(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryRepo()
	a := activeAuction()
	a.Status = models.AuctionCancelled
	a = repo.AddAuction(a)

	service := NewResolutionService(repo, nil, WithClock(afterEnd(a)))
	resolved, err := service.ResolveAuction(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionCancelled, resolved.Status)

	_, err = service.ResolveAuction(context.Background(), 0)
	require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
	_, err = service.ResolveAuction(context.Background(), 999)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

func TestDetermineOutcome(t *testing.T) {
	t.Parallel()

	early := testNow
	late := testNow.Add(time.Second)

	tests := []struct {
		name       string
		reserve    string
		bids       []models.Bid
		wantStatus models.AuctionStatus
		wantBidID  uint64
	}{
		{name: "no_bids", wantStatus: models.AuctionEndedNoWinner},
		{
			name: "tie_goes_to_earliest",
			bids: []models.Bid{
				{ID: 2, UserID: "late", Amount: dec("150"), CreatedAt: late},
				{ID: 3, UserID: "low", Amount: dec("120"), CreatedAt: early},
				{ID: 1, UserID: "early", Amount: dec("150"), CreatedAt: early},
			},
			wantStatus: models.AuctionEndedSold,
			wantBidID:  1,
		},
		{
			name: "same_instant_tie_goes_to_lowest_id",
			bids: []models.Bid{
				{ID: 9, Amount: dec("150"), CreatedAt: early},
				{ID: 4, Amount: dec("150"), CreatedAt: early},
			},
			wantStatus: models.AuctionEndedSold,
			wantBidID:  4,
		},
		{
			name:       "top_bid_under_reserve",
			reserve:    "100",
			bids:       []models.Bid{{ID: 1, Amount: dec("90"), CreatedAt: early}},
			wantStatus: models.AuctionEndedReserveNotMet,
		},
		{
			name:       "top_bid_equal_reserve",
			reserve:    "100",
			bids:       []models.Bid{{ID: 1, Amount: dec("100.00"), CreatedAt: early}},
			wantStatus: models.AuctionEndedSold,
			wantBidID:  1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := activeAuction()
			if tc.reserve != "" {
				a.ReservePrice = decPtr(tc.reserve)
			}
			status, winner := DetermineOutcome(a, tc.bids)
			require.Equal(t, tc.wantStatus, status)
			if tc.wantBidID == 0 {
				require.Nil(t, winner)
				return
			}
			require.NotNil(t, winner)
			require.Equal(t, tc.wantBidID, winner.ID)
		})
	}
}
