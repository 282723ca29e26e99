package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAuctionStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []AuctionStatus{AuctionPending, AuctionActive, AuctionEndedSold, AuctionEndedNoWinner, AuctionEndedReserveNotMet, AuctionCancelled}
	allowed := map[AuctionStatus][]AuctionStatus{
		AuctionPending: {AuctionActive, AuctionCancelled},
		AuctionActive:  {AuctionEndedSold, AuctionEndedNoWinner, AuctionEndedReserveNotMet, AuctionCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			require.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
		require.Equal(t, len(allowed[from]) == 0, from.IsTerminal(), from)
	}
}

func TestAuction_MinimumNextBid(t *testing.T) {
	t.Parallel()

	a := Auction{StartingPrice: decimal.NewFromInt(100), BidIncrementAmount: decimal.RequireFromString("2.50")}
	require.True(t, a.MinimumNextBid().Equal(decimal.RequireFromString("102.50")))

	price := decimal.NewFromInt(90)
	a.CurrentPrice = &price
	require.True(t, a.MinimumNextBid().Equal(decimal.NewFromInt(92).Add(decimal.RequireFromString("0.50"))))
}

func TestAuction_MinimumNextBid_Edges(t *testing.T) {
	t.Parallel()

	price := decimal.NewFromInt(100)
	tests := []struct {
		name      string
		current   *decimal.Decimal
		increment string
		want      string
	}{
		{name: "zero increment first bid", increment: "0", want: "100"},
		{name: "zero increment after a bid", current: &price, increment: "0", want: "100.01"},
		{name: "negative increment after a bid", current: &price, increment: "-5", want: "100.01"},
		{name: "sub-cent increment rounds up", current: &price, increment: "0.001", want: "100.01"},
		{name: "whole increment", current: &price, increment: "5", want: "105"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := Auction{StartingPrice: decimal.NewFromInt(100), CurrentPrice: tt.current, BidIncrementAmount: decimal.RequireFromString(tt.increment)}
			got := a.MinimumNextBid()
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			require.True(t, IsMoney(got))
		})
	}
}

func TestIsMoney(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]bool{"105": true, "105.5": true, "105.05": true, "105.000": true, "105.0049": false, "0.001": false} {
		require.Equal(t, want, IsMoney(decimal.RequireFromString(in)), in)
	}
}

func TestAuction_InBiddingWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a := Auction{StartDate: start, EndDate: start.Add(time.Hour)}

	require.False(t, a.InBiddingWindow(start.Add(-time.Nanosecond)))
	require.True(t, a.InBiddingWindow(start))
	require.True(t, a.InBiddingWindow(start.Add(time.Hour)))
	require.False(t, a.InBiddingWindow(start.Add(time.Hour+time.Nanosecond)))
}

func TestRankBefore(t *testing.T) {
	t.Parallel()

	now := time.Now()
	high := Bid{ID: 5, Amount: decimal.NewFromInt(200), CreatedAt: now}
	low := Bid{ID: 1, Amount: decimal.NewFromInt(100), CreatedAt: now.Add(-time.Hour)}
	tieLate := Bid{ID: 2, Amount: decimal.NewFromInt(200), CreatedAt: now.Add(time.Second)}
	tieSameTime := Bid{ID: 7, Amount: decimal.RequireFromString("200.00"), CreatedAt: now}

	require.True(t, RankBefore(high, low))
	require.False(t, RankBefore(low, high))
	require.True(t, RankBefore(high, tieLate))
	require.True(t, RankBefore(high, tieSameTime))
	require.False(t, RankBefore(tieSameTime, high))
}
