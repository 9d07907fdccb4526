package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freevoice-app/memberkit/adapters/ginutil"
	"github.com/freevoice-app/memberkit/checkout"
)

// HandleCheckoutLinksGET lists the purchasable plans with their
// payment links so the client never hardcodes them.
func HandleCheckoutLinksGET(plans *checkout.PlanTable, rl ginutil.RateLimiter) gin.HandlerFunc {
	if plans == nil {
		plans = checkout.DefaultPlans()
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLMembershipStatus) {
			ginutil.TooMany(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"links": plans.Links()})
	}
}
