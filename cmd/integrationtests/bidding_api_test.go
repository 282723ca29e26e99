package integrationtests

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func bidURL(id uint64) string { return fmt.Sprintf("/auctions/%d/bids", id) }

// PlaceBidHandler Tests
func TestPlaceBidHandler(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		request    any
		wantStatus int
	}{
		{name: "Valid_Bid", user: "user1", request: map[string]any{"amount": 105}, wantStatus: http.StatusCreated},
		{name: "Decimal_String_Amount", user: "user1", request: `{"amount": "105.50"}`, wantStatus: http.StatusCreated},
		{name: "Invalid_JSON", user: "user1", request: "{amount: 'missing quotes'}", wantStatus: http.StatusBadRequest},
		{name: "Missing_User", user: "", request: map[string]any{"amount": 105}, wantStatus: http.StatusUnauthorized},
		{name: "Below_Minimum", user: "user1", request: map[string]any{"amount": 104}, wantStatus: http.StatusConflict},
		{name: "Zero_Amount", user: "user1", request: map[string]any{"amount": 0}, wantStatus: http.StatusBadRequest},
		{name: "Creator_Bid", user: "seller1", request: map[string]any{"amount": 105}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, auctions := SetupTestEnv(NewActiveAuction("seller1", 100, 5))
			resp, w := ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(auctions[0].ID), tt.user, tt.request)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusCreated {
				data := resp["data"].(map[string]any)
				require.Equal(t, "user1", data["user_id"])
				require.Equal(t, true, data["is_winning"])
				require.NotZero(t, data["bid_id"])

				_, err := time.Parse(time.RFC3339, data["created_at"].(string))
				require.NoError(t, err)
			}
			if tt.wantStatus == http.StatusConflict {
				data := resp["data"].(map[string]any)
				require.Equal(t, "105", data["minimum_bid"])
				require.Equal(t, true, data["can_retry"])
			}
		})
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	env, _ := SetupTestEnv()
	_, w := ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(42), "user1", map[string]any{"amount": 105})
	require.Equal(t, http.StatusNotFound, w.Code)
}

// Full auction lifecycle: bids, outbid, anti-sniping, resolution and reads
func TestAuctionLifecycle(t *testing.T) {
	a := NewActiveAuction("seller1", 100, 5)
	a.AutoExtendOnBid = true
	a.ExtensionTimeMinutes = 5
	env, auctions := SetupTestEnv(a)
	id := auctions[0].ID

	_, w := ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(id), "user1", map[string]any{"amount": 105})
	require.Equal(t, http.StatusCreated, w.Code)
	_, w = ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(id), "user2", map[string]any{"amount": 120})
	require.Equal(t, http.StatusCreated, w.Code)

	// resolving early is refused
	_, w = ExecuteRequestAndParse(t, env.router, http.MethodPost, fmt.Sprintf("/auctions/%d/resolve", id), "admin", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// a late bid extends the auction
	env.Advance(time.Hour - time.Minute)
	_, w = ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(id), "user1", map[string]any{"amount": 130})
	require.Equal(t, http.StatusCreated, w.Code)

	resp, w := ExecuteRequestAndParse(t, env.router, http.MethodGet, fmt.Sprintf("/auctions/%d", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	auction := resp["data"].(map[string]any)
	require.Equal(t, "130", auction["current_price"])
	require.Equal(t, float64(3), auction["bids_count"])
	end, err := time.Parse(time.RFC3339Nano, auction["end_date"].(string))
	require.NoError(t, err)
	require.True(t, end.After(auctions[0].EndDate))

	resp, w = ExecuteRequestAndParse(t, env.router, http.MethodGet, bidURL(id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 3)

	// past the extended end the auction can be closed
	env.Advance(10 * time.Minute)
	resp, w = ExecuteRequestAndParse(t, env.router, http.MethodPost, fmt.Sprintf("/auctions/%d/resolve", id), "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resolved := resp["data"].(map[string]any)
	require.Equal(t, "ended_sold", resolved["status"])
	require.Equal(t, "user1", resolved["winner_id"])
	require.Equal(t, "130", resolved["winning_bid_amount"])

	resp, w = ExecuteRequestAndParse(t, env.router, http.MethodGet, fmt.Sprintf("/auctions/%d/winning", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	winning := resp["data"].(map[string]any)
	require.Equal(t, "user1", winning["user_id"])
	require.Equal(t, "winner", winning["status"])

	// no more bids once ended
	_, w = ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(id), "user2", map[string]any{"amount": 500})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp, w = ExecuteRequestAndParse(t, env.router, http.MethodGet, "/users/user2/auctions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 1)

	resp, w = ExecuteRequestAndParse(t, env.router, http.MethodGet, "/users/nobody/auctions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 0)
}

func TestGetBids_EmptyAuction(t *testing.T) {
	env, auctions := SetupTestEnv(NewActiveAuction("seller1", 100, 5))
	id := auctions[0].ID

	resp, w := ExecuteRequestAndParse(t, env.router, http.MethodGet, bidURL(id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 0)

	_, w = ExecuteRequestAndParse(t, env.router, http.MethodGet, fmt.Sprintf("/auctions/%d/winning", id), "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestConcurrentBids_SinglePriceWinner(t *testing.T) {
	env, auctions := SetupTestEnv(NewActiveAuction("seller1", 100, 1))
	id := auctions[0].ID

	const bidders = 50
	var wg sync.WaitGroup
	codes := make(chan int, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, w := ExecuteRequestAndParse(t, env.router, http.MethodPost, bidURL(id), fmt.Sprintf("user%d", i), map[string]any{"amount": 101 + i})
			codes <- w.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	accepted := 0
	for code := range codes {
		require.Contains(t, []int{http.StatusCreated, http.StatusConflict}, code)
		if code == http.StatusCreated {
			accepted++
		}
	}

	resp, w := ExecuteRequestAndParse(t, env.router, http.MethodGet, bidURL(id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := resp["data"].([]any)
	require.Len(t, bids, accepted)

	winners := 0
	for _, b := range bids {
		if b.(map[string]any)["is_winning"] == true {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestHealthz(t *testing.T) {
	env, _ := SetupTestEnv()
	resp, w := ExecuteRequestAndParse(t, env.router, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", resp["status"])
}
