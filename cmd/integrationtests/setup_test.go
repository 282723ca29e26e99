package integrationtests

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// testEnv bundles the router with the store and clock behind it
type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepo
	now    *time.Time
}

// SetupTestEnv wires the full HTTP stack over an in-memory repository and a movable clock.
func SetupTestEnv(auctions ...models.Auction) (*testEnv, []models.Auction) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()

	now := time.Now().UTC()
	env := &testEnv{repo: repo, now: &now}
	clock := bidding.WithClock(func() time.Time { return *env.now })

	seeded := make([]models.Auction, 0, len(auctions))
	for _, a := range auctions {
		seeded = append(seeded, repo.AddAuction(a))
	}

	service := bidding.NewBiddingService(repo, nil, clock)
	resolver := bidding.NewResolutionService(repo, nil, clock)
	env.router = server.SetupRouter(service, resolver, server.HeaderIdentity())
	return env, seeded
}

// Advance moves the clock used by the services
func (e *testEnv) Advance(d time.Duration) { *e.now = e.now.Add(d) }

// NewActiveAuction returns an auction open for the next hour
func NewActiveAuction(creator string, starting, increment int64) models.Auction {
	now := time.Now().UTC()
	return models.Auction{
		ProductID:          "product-" + creator,
		CreatorID:          creator,
		StartingPrice:      decimal.NewFromInt(starting),
		BidIncrementAmount: decimal.NewFromInt(increment),
		StartDate:          now.Add(-time.Minute),
		EndDate:            now.Add(time.Hour),
		Status:             models.AuctionActive,
	}
}

// ExecuteRequestAndParse executes an HTTP request as user and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, user string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(server.UserHeader, user)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}
