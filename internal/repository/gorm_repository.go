package repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL error numbers that mean "try again"
const (
	mysqlLockWaitTimeout uint16 = 1205
	mysqlDeadlock        uint16 = 1213
)

// GormRepo implements AuctionDB on top of GORM. Per-auction serialization
// uses SELECT ... FOR UPDATE on the auctions row.
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo creates a repository bound to the given GORM handle
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// CreateAuction inserts a new auction row
func (r *GormRepo) CreateAuction(ctx context.Context, auction *models.Auction) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(auction).Error; err != nil {
		return fmt.Errorf("create auction: %w", classify(err))
	}
	return nil
}

// GetAuction returns the auction with the given ID
func (r *GormRepo) GetAuction(ctx context.Context, auctionID uint64) (models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).First(&auction, auctionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Auction{}, fmt.Errorf("get auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %d: %w", auctionID, classify(err))
	}
	return auction, nil
}

// GetBidsByAuction returns all bids for an auction in placement order
func (r *GormRepo) GetBidsByAuction(ctx context.Context, auctionID uint64) ([]models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC, id ASC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %d: %w", auctionID, classify(err))
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %d: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the bid currently flagged as winning
func (r *GormRepo) GetWinningBid(ctx context.Context, auctionID uint64) (models.Bid, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return models.Bid{}, err
	}

	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND is_winning = ?", auctionID, true).
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %d: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %d: %w", auctionID, classify(err))
	}
	return bid, nil
}

// GetAuctionsByBidder returns all auctions a user has bid on
func (r *GormRepo) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	bidAuctions := r.db.Model(&models.Bid{}).Select("DISTINCT auction_id").Where("user_id = ?", userID)

	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("id IN (?)", bidAuctions).
		Order("id ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, classify(err))
	}
	if len(auctions) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return auctions, nil
}

// ListOverdueAuctionIDs returns active auctions whose end date is at or before now
func (r *GormRepo) ListOverdueAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("status = ? AND end_date <= ?", models.AuctionActive, now).
		Order("end_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var ids []uint64
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list overdue auctions: %w", classify(err))
	}
	return ids, nil
}

// WithAuctionLock opens a transaction, locks the auction row for update and runs fn.
// The transaction commits only when fn returns nil.
func (r *GormRepo) WithAuctionLock(ctx context.Context, auctionID uint64, fn func(tx AuctionTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auction models.Auction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&auction, auctionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lock auction %d: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock auction %d: %w", auctionID, classify(err))
		}
		return fn(&gormTx{db: tx, auction: auction})
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, biddingerrors.ErrTransientFailure) && isRetryable(err) {
		return fmt.Errorf("auction %d transaction: %w", auctionID, classify(err))
	}
	return err
}

// classify maps lock waits, deadlocks, dropped connections and expired
// contexts onto ErrTransientFailure. Other errors pass through unchanged.
func classify(err error) error {
	if isRetryable(err) {
		return fmt.Errorf("%w: %v", biddingerrors.ErrTransientFailure, err)
	}
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn)
}

type gormTx struct {
	db      *gorm.DB
	auction models.Auction
}

func (t *gormTx) Auction() models.Auction { return t.auction }

func (t *gormTx) SaveAuction(auction models.Auction) error {
	if auction.ID != t.auction.ID {
		return fmt.Errorf("save auction %d: lock held on auction %d", auction.ID, t.auction.ID)
	}
	if err := t.db.Omit(clause.Associations).Save(&auction).Error; err != nil {
		return fmt.Errorf("save auction %d: %w", auction.ID, classify(err))
	}
	t.auction = auction
	return nil
}

func (t *gormTx) WinningBid() (*models.Bid, error) {
	var bids []models.Bid
	err := t.db.
		Where("auction_id = ? AND status = ? AND is_winning = ?", t.auction.ID, models.BidActive, true).
		Limit(1).
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("winning bid for auction %d: %w", t.auction.ID, classify(err))
	}
	if len(bids) == 0 {
		return nil, nil
	}
	return &bids[0], nil
}

func (t *gormTx) ActiveBids() ([]models.Bid, error) {
	var bids []models.Bid
	err := t.db.
		Where("auction_id = ? AND status = ?", t.auction.ID, models.BidActive).
		Order("amount DESC, created_at ASC, id ASC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("active bids for auction %d: %w", t.auction.ID, classify(err))
	}
	return bids, nil
}

func (t *gormTx) InsertBid(bid *models.Bid) error {
	if bid.AuctionID != t.auction.ID {
		return fmt.Errorf("insert bid: auction %d does not match locked auction %d", bid.AuctionID, t.auction.ID)
	}
	if err := t.db.Create(bid).Error; err != nil {
		return fmt.Errorf("insert bid on auction %d: %w", t.auction.ID, classify(err))
	}
	return nil
}

func (t *gormTx) SaveBid(bid models.Bid) error {
	if err := t.db.Save(&bid).Error; err != nil {
		return fmt.Errorf("save bid %d: %w", bid.ID, classify(err))
	}
	return nil
}
