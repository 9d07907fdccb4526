package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	membergin "github.com/freevoice-app/memberkit/adapters/gin"
	"github.com/freevoice-app/memberkit/adapters/ginutil"
	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/profile"
)

// HandleMembershipStatusGET reports the caller's resolved membership
// snapshot. Requires AuthRequired upstream.
func HandleMembershipStatusGET(store profile.Store, clock core.Clock, rl ginutil.RateLimiter) gin.HandlerFunc {
	if clock == nil {
		clock = core.SystemClock()
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLMembershipStatus) {
			ginutil.TooMany(c)
			return
		}
		uid := membergin.UserID(c)
		if uid == "" {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		rec, err := store.Get(c.Request.Context(), uid)
		if err != nil {
			ginutil.ServerErr(c, "store_unavailable")
			return
		}
		snap := entitlement.Resolve(rec, clock.Now())
		c.JSON(http.StatusOK, gin.H{
			"tier":         snap.Tier,
			"active":       snap.IsActive,
			"remaining_ms": snap.RemainingMs(),
		})
	}
}
