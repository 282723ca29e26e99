package utils

import (
	"github.com/gin-gonic/gin"
)

// envelope is the body shape shared by every endpoint:
// {"status", "message", "data"?, "error"?}.
func envelope(status int, message string, err error, data any) gin.H {
	body := gin.H{
		"status":  status,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	if data != nil {
		body["data"] = data
	}
	return body
}

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope(status, message, nil, data))
}

// JSONError sends a structured error response
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, envelope(status, message, err, nil))
}

// JSONErrorWithData sends an error response with extra data the client can act on,
// e.g. the minimum acceptable bid.
func JSONErrorWithData(c *gin.Context, status int, err error, message string, data any) {
	c.JSON(status, envelope(status, message, err, data))
}

// AbortWithError writes an error response and stops the handler chain.
func AbortWithError(c *gin.Context, status int, err error, message string) {
	c.AbortWithStatusJSON(status, envelope(status, message, err, nil))
}
