package server

import (
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserHeader carries the caller identity when running with HeaderIdentity.
const UserHeader = "X-User-ID"

// JWTAuth validates an HS256 Bearer token and stores its subject as the
// caller's user id.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			utils.AbortWithError(c, http.StatusUnauthorized, errors.New("missing bearer token"), "unauthorized")
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			utils.AbortWithError(c, http.StatusUnauthorized, errors.New("invalid token"), "unauthorized")
			return
		}

		sub, err := tok.Claims.GetSubject()
		if err != nil || sub == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, errors.New("token has no subject"), "unauthorized")
			return
		}

		c.Set(helpers.UserIDKey, sub)
		c.Next()
	}
}

// HeaderIdentity trusts the X-User-ID header. Only for local development and tests.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(UserHeader))
		if user == "" {
			utils.AbortWithError(c, http.StatusUnauthorized, errors.New("missing "+UserHeader+" header"), "unauthorized")
			return
		}
		c.Set(helpers.UserIDKey, user)
		c.Next()
	}
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
