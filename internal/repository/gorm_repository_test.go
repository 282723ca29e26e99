package repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*GormRepo, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return NewGormRepo(db), mock
}

var auctionColumns = []string{"id", "product_id", "creator_id", "starting_price", "bid_increment_amount", "start_date", "end_date", "status", "bids_count"}

func TestGormRepo_GetAuction(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?").
		WillReturnRows(sqlmock.NewRows(auctionColumns).
			AddRow(1, "product1", "seller1", "100.00", "5.00", now.Add(-time.Hour), now.Add(time.Hour), "active", 0))
	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?").
		WillReturnRows(sqlmock.NewRows(auctionColumns))

	got, err := repo.GetAuction(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.ID)
	require.Equal(t, models.AuctionActive, got.Status)
	require.True(t, got.StartingPrice.Equal(decimal.NewFromInt(100)))

	_, err = repo.GetAuction(context.Background(), 2)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepo_ListOverdueAuctionIDs(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)

	mock.ExpectQuery("SELECT `id` FROM `auctions` WHERE status = \\? AND end_date <= \\? ORDER BY end_date ASC, id ASC LIMIT \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(1))

	ids, err := repo.ListOverdueAuctionIDs(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 1}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepo_WithAuctionLock_DeadlockIsTransient(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?.* FOR UPDATE").
		WillReturnError(&mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	called := false
	err := repo.WithAuctionLock(context.Background(), 1, func(AuctionTx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, biddingerrors.ErrTransientFailure)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepo_WithAuctionLock_NotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(auctionColumns))
	mock.ExpectRollback()

	err := repo.WithAuctionLock(context.Background(), 9, func(AuctionTx) error { return nil })
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	require.False(t, biddingerrors.IsTransient(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepo_WithAuctionLock_RollsBackOnBusinessError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(auctionColumns).
			AddRow(1, "product1", "seller1", "100.00", "5.00", now.Add(-time.Hour), now.Add(time.Hour), "active", 0))
	mock.ExpectRollback()

	err := repo.WithAuctionLock(context.Background(), 1, func(tx AuctionTx) error {
		require.Equal(t, "seller1", tx.Auction().CreatorID)
		return &biddingerrors.BidTooLowError{Minimum: tx.Auction().MinimumNextBid()}
	})
	require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
	require.False(t, biddingerrors.IsTransient(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepo_WithAuctionLock_ActiveBidsRanked(t *testing.T) {
	t.Parallel()

	repo, mock := newMockGorm(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `auctions` WHERE `auctions`.`id` = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(auctionColumns).
			AddRow(1, "product1", "seller1", "100.00", "5.00", now.Add(-time.Hour), now.Add(time.Hour), "active", 2))
	mock.ExpectQuery("SELECT \\* FROM `bids` WHERE auction_id = \\? AND status = \\? ORDER BY amount DESC, created_at ASC, id ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "auction_id", "user_id", "amount", "status", "is_winning", "created_at"}).
			AddRow(2, 1, "user2", "110.00", "active", true, now).
			AddRow(1, 1, "user1", "105.00", "active", false, now.Add(-time.Minute)))
	mock.ExpectCommit()

	err := repo.WithAuctionLock(context.Background(), 1, func(tx AuctionTx) error {
		bids, err := tx.ActiveBids()
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, "user2", bids[0].UserID)
		require.True(t, bids[0].Amount.Equal(decimal.NewFromInt(110)))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "lock_wait_timeout", err: &mysqldriver.MySQLError{Number: 1205}, want: true},
		{name: "deadlock", err: &mysqldriver.MySQLError{Number: 1213}, want: true},
		{name: "duplicate_key", err: &mysqldriver.MySQLError{Number: 1062}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "invalid_conn", err: mysqldriver.ErrInvalidConn, want: true},
		{name: "record_not_found", err: gorm.ErrRecordNotFound, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, isRetryable(tc.err))
			if tc.err != nil {
				require.Equal(t, tc.want, biddingerrors.IsTransient(classify(tc.err)))
			}
		})
	}
}
