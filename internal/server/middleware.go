package server

import (
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader is echoed back on every response. A caller-supplied value is kept.
const RequestIDHeader = "X-Request-ID"

// RequestLoggerMiddleware tags the request with an id and logs it with timing.
// 5xx responses are logged at warn level.
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	reqID := c.GetHeader(RequestIDHeader)
	if reqID == "" {
		reqID = utils.NewEventID()
	}
	c.Header(RequestIDHeader, reqID)

	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	fields := map[string]any{
		"request_id": reqID,
		"method":     c.Request.Method,
		"route":      route,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
	}
	if id := c.Param("auction_id"); id != "" {
		fields["auction_id"] = id
	}
	if user := c.GetString(helpers.UserIDKey); user != "" {
		fields["user_id"] = user
	}
	if len(c.Errors) > 0 {
		fields["error"] = c.Errors.String()
	}

	if c.Writer.Status() >= 500 {
		utils.Warn("HTTP Request", fields)
		return
	}
	utils.Info("HTTP Request", fields)
}
