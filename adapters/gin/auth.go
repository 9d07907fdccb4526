// Package membergin wires the membership API onto gin: session token
// authentication plus the handlers under handlers/.
package membergin

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/freevoice-app/memberkit/adapters/ginutil"
	jwtkit "github.com/freevoice-app/memberkit/jwt"
)

const (
	ctxUserID = "auth.user_id"
	ctxClaims = "auth.claims"
)

// AuthRequired rejects requests without a valid bearer session token
// and stores the verified claims for downstream handlers.
func AuthRequired(v *jwtkit.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			ginutil.Unauthorized(c, "missing_token")
			c.Abort()
			return
		}
		claims, err := v.Verify(raw)
		if err != nil {
			ginutil.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// ClaimsFromGin returns the verified session claims, if AuthRequired
// ran.
func ClaimsFromGin(c *gin.Context) (*jwtkit.SessionClaims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwtkit.SessionClaims)
	return claims, ok
}

// UserID returns the authenticated subject, or "".
func UserID(c *gin.Context) string {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
