package repository

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AuctionDB defines the auction and bid storage interface for the bidding engine
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, auctionID uint64) (models.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID uint64) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error)
	ListOverdueAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)

	// WithAuctionLock runs fn inside one transaction holding the auction's row
	// lock. Changes made through tx are committed only if fn returns nil.
	// Lock waits that exceed ctx surface as ErrTransientFailure.
	WithAuctionLock(ctx context.Context, auctionID uint64, fn func(tx AuctionTx) error) error
}

// AuctionTx is the view of one locked auction inside WithAuctionLock
type AuctionTx interface {
	Auction() models.Auction
	SaveAuction(auction models.Auction) error
	// WinningBid returns the active bid currently marked as winning, or nil
	WinningBid() (*models.Bid, error)
	// ActiveBids returns every active bid ranked by models.RankBefore
	ActiveBids() ([]models.Bid, error)
	InsertBid(bid *models.Bid) error
	SaveBid(bid models.Bid) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Writers to one auction are serialized by a per-auction lock; different
// auctions never contend on it.
type MemoryRepo struct {
	mu           sync.RWMutex
	auctions     map[uint64]models.Auction
	bids         map[uint64][]models.Bid // key: auctionID -> value: bids in insertion order
	userAuctions map[string][]uint64     // key: userID -> value: auctionIDs the user has bid on

	locksMu sync.Mutex
	locks   map[uint64]*auctionLock

	nextAuctionID atomic.Uint64
	nextBidID     atomic.Uint64
	now           func() time.Time
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:     make(map[uint64]models.Auction),
		bids:         make(map[uint64][]models.Bid),
		userAuctions: make(map[string][]uint64),
		locks:        make(map[uint64]*auctionLock),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateAuction stores a new auction and assigns its ID
func (r *MemoryRepo) CreateAuction(_ context.Context, auction *models.Auction) error {
	if auction == nil {
		return fmt.Errorf("create auction: %w - nil auction", biddingerrors.ErrInvalidBid)
	}
	now := r.now()
	auction.ID = r.nextAuctionID.Add(1)
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = now
	}
	auction.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.ID] = *auction
	return nil
}

// AddAuction adds an auction and returns it with its assigned ID. Intended for seeding and tests.
func (r *MemoryRepo) AddAuction(auction models.Auction) models.Auction {
	_ = r.CreateAuction(context.Background(), &auction)
	return auction
}

// GetAuction returns the auction with the given ID
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID uint64) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return auction, nil
}

// GetBidsByAuction returns all bids for an auction in placement order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID uint64) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %d: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

// GetWinningBid returns the bid currently flagged as winning
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID uint64) (models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	for _, b := range r.bids[auctionID] {
		if b.IsWinning {
			return b, nil
		}
	}
	return models.Bid{}, fmt.Errorf("get winning bid for auction %d: %w", auctionID, biddingerrors.ErrNoBids)
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, userID string) ([]models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.userAuctions[userID]
	if len(ids) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	auctions := make([]models.Auction, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.auctions[id]; ok {
			auctions = append(auctions, a)
		}
	}
	return auctions, nil
}

// ListOverdueAuctionIDs returns active auctions whose end date is at or before now,
// earliest end first. A non-positive limit returns all of them.
func (r *MemoryRepo) ListOverdueAuctionIDs(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	r.mu.RLock()
	overdue := make([]models.Auction, 0)
	for _, a := range r.auctions {
		if a.Status == models.AuctionActive && !a.EndDate.After(now) {
			overdue = append(overdue, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(overdue, func(i, j int) bool {
		if !overdue[i].EndDate.Equal(overdue[j].EndDate) {
			return overdue[i].EndDate.Before(overdue[j].EndDate)
		}
		return overdue[i].ID < overdue[j].ID
	})
	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}

	ids := make([]uint64, 0, len(overdue))
	for _, a := range overdue {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// WithAuctionLock serializes fn against every other writer of the same auction
func (r *MemoryRepo) WithAuctionLock(ctx context.Context, auctionID uint64, fn func(tx AuctionTx) error) error {
	lock := r.acquireLock(auctionID)
	defer r.releaseLock(auctionID, lock)

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("lock auction %d: %w: %v", auctionID, biddingerrors.ErrTransientFailure, ctx.Err())
	}
	defer func() { <-lock.ch }()

	r.mu.RLock()
	auction, ok := r.auctions[auctionID]
	committed := append([]models.Bid(nil), r.bids[auctionID]...)
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("lock auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	tx := &memoryTx{repo: r, auction: auction, bids: committed}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit auction %d: %w: %v", auctionID, biddingerrors.ErrTransientFailure, err)
	}
	r.commit(tx)
	return nil
}

// auctionLock is a one-slot semaphore shared by every caller holding or
// waiting on the same auction. refs is guarded by MemoryRepo.locksMu.
type auctionLock struct {
	ch   chan struct{}
	refs int
}

func (r *MemoryRepo) acquireLock(auctionID uint64) *auctionLock {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[auctionID]
	if !ok {
		lock = &auctionLock{ch: make(chan struct{}, 1)}
		r.locks[auctionID] = lock
	}
	lock.refs++
	return lock
}

// releaseLock drops the entry once no caller holds or waits on it, so the
// map only tracks auctions with writers in flight.
func (r *MemoryRepo) releaseLock(auctionID uint64, lock *auctionLock) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, auctionID)
	}
}

func (r *MemoryRepo) commit(tx *memoryTx) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := tx.auction.ID
	r.auctions[id] = tx.auction
	r.bids[id] = tx.bids

	for _, b := range tx.inserted {
		if !containsID(r.userAuctions[b.UserID], id) {
			r.userAuctions[b.UserID] = append(r.userAuctions[b.UserID], id)
		}
	}
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// memoryTx stages changes to one auction until WithAuctionLock commits them
type memoryTx struct {
	repo     *MemoryRepo
	auction  models.Auction
	bids     []models.Bid
	inserted []models.Bid
}

func (t *memoryTx) Auction() models.Auction { return t.auction }

func (t *memoryTx) SaveAuction(auction models.Auction) error {
	if auction.ID != t.auction.ID {
		return fmt.Errorf("save auction %d: lock held on auction %d", auction.ID, t.auction.ID)
	}
	auction.UpdatedAt = t.repo.now()
	t.auction = auction
	return nil
}

func (t *memoryTx) WinningBid() (*models.Bid, error) {
	for i := range t.bids {
		if t.bids[i].Status == models.BidActive && t.bids[i].IsWinning {
			b := t.bids[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) ActiveBids() ([]models.Bid, error) {
	active := make([]models.Bid, 0, len(t.bids))
	for _, b := range t.bids {
		if b.Status == models.BidActive {
			active = append(active, b)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return models.RankBefore(active[i], active[j]) })
	return active, nil
}

func (t *memoryTx) InsertBid(bid *models.Bid) error {
	if bid.AuctionID != t.auction.ID {
		return fmt.Errorf("insert bid: auction %d does not match locked auction %d", bid.AuctionID, t.auction.ID)
	}
	now := t.repo.now()
	bid.ID = t.repo.nextBidID.Add(1)
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = now
	}
	bid.UpdatedAt = now
	t.bids = append(t.bids, *bid)
	t.inserted = append(t.inserted, *bid)
	return nil
}

func (t *memoryTx) SaveBid(bid models.Bid) error {
	for i := range t.bids {
		if t.bids[i].ID == bid.ID {
			bid.UpdatedAt = t.repo.now()
			t.bids[i] = bid
			return nil
		}
	}
	return fmt.Errorf("save bid %d on auction %d: bid not found", bid.ID, t.auction.ID)
}
