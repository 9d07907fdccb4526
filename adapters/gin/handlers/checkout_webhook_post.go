package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freevoice-app/memberkit/adapters/ginutil"
	"github.com/freevoice-app/memberkit/checkout"
	"github.com/freevoice-app/memberkit/core"
)

const maxWebhookBody = 1 << 20

// HandleCheckoutWebhookPOST receives signed payment events and
// enqueues the membership grant. The signature is checked over the
// raw body before anything is decoded. A non-positive tolerance means
// checkout.DefaultTolerance.
func HandleCheckoutWebhookPOST(secret string, tolerance time.Duration, enq checkout.Enqueuer, clock core.Clock, rl ginutil.RateLimiter) gin.HandlerFunc {
	if clock == nil {
		clock = core.SystemClock()
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheckoutWebhook) {
			ginutil.TooMany(c)
			return
		}
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			ginutil.BadRequest(c, "unreadable_body")
			return
		}
		sig := c.GetHeader("Stripe-Signature")
		if err := checkout.VerifySignature(payload, sig, secret, tolerance, clock.Now()); err != nil {
			ginutil.BadRequest(c, "bad_signature")
			return
		}
		args, err := checkout.ParseEvent(payload)
		switch {
		case errors.Is(err, checkout.ErrIgnoredEvent):
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		case err != nil:
			ginutil.BadRequest(c, "bad_event")
			return
		}
		if err := enq.Enqueue(c.Request.Context(), args); err != nil {
			ginutil.ServerErr(c, "enqueue_failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
