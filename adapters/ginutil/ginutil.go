// Package ginutil carries the small helpers shared by the gin
// handlers: rate limit checks and uniform error responses.
package ginutil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freevoice-app/memberkit/ratelimit"
)

// Rate limit bucket names, one per handler.
const (
	RLCheckoutWebhook  = ratelimit.BucketWebhook
	RLMembershipStatus = ratelimit.BucketStatus
	RLSignIn           = ratelimit.BucketSignIn
)

// RateLimiter is what handlers need from a limiter backend.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

// AllowNamed checks the caller's IP against the named bucket. A nil
// limiter or a backend error admits the request; rate limiting is
// advisory, never a source of outages.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(bucket, c.ClientIP())
	if err != nil {
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

func Unauthorized(c *gin.Context, code string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}
