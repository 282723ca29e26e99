package server

import (
	handler "auction-engine/services/bidding/handler"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application.
// auth guards the write endpoints and must set the caller's user id on the context.
func SetupRouter(service handler.BiddingServiceInterface, resolver handler.AuctionResolverInterface, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	biddingHandler := handler.NewBiddingHandler(service, resolver)

	auctions := router.Group("/auctions")
	{
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.POST("/:auction_id/bids", auth, biddingHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/resolve", auth, biddingHandler.ResolveAuctionHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
	}

	return router
}
