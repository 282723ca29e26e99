// Package scheduler runs the periodic sweep that closes overdue auctions.
package scheduler

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults used when no Option overrides them
const (
	DefaultInterval       = time.Minute
	DefaultResolveTimeout = 30 * time.Second
	DefaultBatchSize      = 500
)

// OverdueLister finds active auctions whose end date has passed
type OverdueLister interface {
	ListOverdueAuctionIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// AuctionResolver settles a single auction
type AuctionResolver interface {
	ResolveAuction(ctx context.Context, auctionID uint64) (models.Auction, error)
}

// TickLock lets one replica claim a sweep tick. Sweeps stay correct without
// it; it only avoids redundant work across instances.
type TickLock interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// SweepResult summarizes one pass. Deferred counts auctions a late bid
// extended after they were listed; a later pass picks them up.
type SweepResult struct {
	Candidates int
	Resolved   int
	Deferred   int
	Failed     int
	Skipped    bool
}

// Sweeper periodically resolves every overdue auction, one lock scope each
type Sweeper struct {
	lister         OverdueLister
	resolver       AuctionResolver
	lock           TickLock
	interval       time.Duration
	resolveTimeout time.Duration
	batchSize      int
	now            func() time.Time
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithInterval sets the time between sweeps
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithResolveTimeout sets the deadline applied to each auction's resolution
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.resolveTimeout = d
		}
	}
}

// WithBatchSize caps how many auctions one pass picks up
func WithBatchSize(n int) Option {
	return func(s *Sweeper) { s.batchSize = n }
}

// WithTickLock installs a cross-replica lease
func WithTickLock(l TickLock) Option {
	return func(s *Sweeper) { s.lock = l }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(lister OverdueLister, resolver AuctionResolver, opts ...Option) *Sweeper {
	s := &Sweeper{
		lister:         lister,
		resolver:       resolver,
		interval:       DefaultInterval,
		resolveTimeout: DefaultResolveTimeout,
		batchSize:      DefaultBatchSize,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately and then on every tick until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	utils.Info("sweeper: started", map[string]any{"interval": s.interval.String()})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			utils.Info("sweeper: stopped", nil)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	if err != nil {
		utils.Error("sweeper: pass failed", utils.ErrFields(err, nil))
		return
	}
	if res.Candidates > 0 {
		utils.Info("sweeper: pass complete", map[string]any{
			"candidates": res.Candidates,
			"resolved":   res.Resolved,
			"deferred":   res.Deferred,
			"failed":     res.Failed,
		})
	}
}

// SweepOnce resolves every auction that is active and past its end date.
// A failure on one auction is logged and counted; the others still run.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	if s.lock != nil {
		ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return SweepResult{}, fmt.Errorf("sweeper: acquire tick lock: %w", err)
		}
		if !ok {
			return SweepResult{Skipped: true}, nil
		}
	}

	ids, err := s.lister.ListOverdueAuctionIDs(ctx, s.now(), s.batchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweeper: list overdue auctions: %w", err)
	}

	res := SweepResult{Candidates: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		err := s.resolveOne(ctx, id)
		if errors.Is(err, biddingerrors.ErrAuctionNotEnded) {
			res.Deferred++
			utils.Debug("sweeper: auction extended since listing", map[string]any{"auction_id": id})
			continue
		}
		if err != nil {
			res.Failed++
			utils.Error("sweeper: failed to resolve auction", utils.ErrFields(err, map[string]any{"auction_id": id}))
			continue
		}
		res.Resolved++
	}
	return res, nil
}

func (s *Sweeper) resolveOne(ctx context.Context, auctionID uint64) error {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	auction, err := s.resolver.ResolveAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	utils.Debug("sweeper: auction resolved", map[string]any{
		"auction_id": auction.ID,
		"status":     auction.Status,
	})
	return nil
}
