package main

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/config"
	"auction-engine/internal/database"
	"auction-engine/internal/models"
	"auction-engine/internal/notifier"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"
	"auction-engine/utils"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	utils.ConfigureLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := openStore(cfg)

	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	events, closeEvents := buildNotifier(cfg, rdb)
	defer closeEvents()

	opts := []bidding.Option{
		bidding.WithLockTimeout(cfg.BidLockTimeout),
		bidding.WithRetry(cfg.BidMaxAttempts, cfg.BidRetryBackoff),
		bidding.WithTriggerWindow(cfg.ExtendTriggerWindow),
	}
	biddingSvc := bidding.NewBiddingService(repo, events, opts...)
	resolutionSvc := bidding.NewResolutionService(repo, events, opts...)

	sweepOpts := []scheduler.Option{
		scheduler.WithInterval(cfg.SweepInterval),
		scheduler.WithResolveTimeout(cfg.ResolveTimeout),
		scheduler.WithBatchSize(cfg.SweepBatchSize),
	}
	if rdb != nil {
		sweepOpts = append(sweepOpts, scheduler.WithTickLock(
			scheduler.NewRedisTickLock(rdb, "auction:sweep:lease", cfg.SweepInterval/2)))
	}
	sweeper := scheduler.NewSweeper(repo, resolutionSvc, sweepOpts...)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			utils.Error("sweeper exited", utils.ErrFields(err, nil))
		}
	}()

	auth := server.HeaderIdentity()
	if cfg.JWTSecret != "" {
		auth = server.JWTAuth(cfg.JWTSecret)
	} else {
		utils.Warn("JWT_SECRET not set, trusting X-User-ID header", nil)
	}
	router := server.SetupRouter(biddingSvc, resolutionSvc, auth)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.Info("starting auction server", map[string]any{"addr": cfg.Addr(), "store": cfg.StoreBackend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", utils.ErrFields(err, nil))
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server shutdown failed", utils.ErrFields(err, nil))
	}
}

// openStore selects the storage backend named by STORE_BACKEND
func openStore(cfg config.Config) repository.AuctionDB {
	switch cfg.StoreBackend {
	case config.StoreMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			utils.Fatal("failed to open database", utils.ErrFields(err, nil))
		}
		return repository.NewGormRepo(db)
	case config.StoreMemory:
		repo := repository.NewMemoryRepo()
		if cfg.SeedDemoAuctions {
			seedAuctions(repo)
		}
		return repo
	default:
		utils.Fatal("unknown store backend", map[string]any{"store": cfg.StoreBackend})
		return nil
	}
}

// buildNotifier always logs events and adds RabbitMQ and Redis sinks when configured
func buildNotifier(cfg config.Config, rdb *redis.Client) (notifier.Notifier, func()) {
	sinks := notifier.Fanout{notifier.LogNotifier{}}
	closeFn := func() {}

	if cfg.RabbitMQURL != "" {
		pub, err := notifier.DialAMQP(cfg.RabbitMQURL)
		if err != nil {
			utils.Warn("rabbitmq unavailable, events will not be queued", utils.ErrFields(err, nil))
		} else {
			sinks = append(sinks, pub)
			closeFn = func() { _ = pub.Close() }
		}
	}
	if rdb != nil {
		sinks = append(sinks, notifier.NewRedisBroadcaster(rdb, "auction"))
	}
	return sinks, closeFn
}

// seedAuctions adds sample auctions to the in-memory repo
func seedAuctions(repo *repository.MemoryRepo) {
	now := time.Now().UTC()
	reserve := decimal.NewFromInt(250)
	auctions := []models.Auction{
		{ProductID: "product1", CreatorID: "seller1", StartingPrice: decimal.NewFromInt(100), BidIncrementAmount: decimal.NewFromInt(5),
			StartDate: now, EndDate: now.Add(time.Hour), Status: models.AuctionActive},
		{ProductID: "product2", CreatorID: "seller1", StartingPrice: decimal.NewFromInt(200), BidIncrementAmount: decimal.NewFromInt(10),
			ReservePrice: &reserve, StartDate: now, EndDate: now.Add(2 * time.Hour), Status: models.AuctionActive,
			AutoExtendOnBid: true, ExtensionTimeMinutes: 5},
		{ProductID: "product3", CreatorID: "seller2", StartingPrice: decimal.NewFromInt(150), BidIncrementAmount: decimal.NewFromInt(1),
			StartDate: now, EndDate: now.Add(10 * time.Minute), Status: models.AuctionActive,
			AutoExtendOnBid: true, ExtensionTimeMinutes: 2},
	}

	for _, a := range auctions {
		a = repo.AddAuction(a)
		utils.Info("seeded auction", map[string]any{"auction_id": a.ID, "product_id": a.ProductID})
	}
}
