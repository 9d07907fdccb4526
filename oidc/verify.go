package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verify validates a raw ID token against the provider's published
// keys, issuer, audience and (when non-empty) nonce, and extracts the
// identity claims.
func (rp *RelyingParty) Verify(ctx context.Context, rawToken, nonce string) (Claims, error) {
	keySet, err := rp.keyCache.Get(ctx, rp.jwksURL)
	if err != nil {
		return Claims{}, fmt.Errorf("oidc: jwks fetch: %w", err)
	}

	tok, err := jwt.Parse([]byte(rawToken),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(rp.issuer),
		jwt.WithAudience(rp.oauth.ClientID),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("oidc: id_token verification: %w", err)
	}

	if nonce != "" {
		got, _ := tok.Get("nonce")
		if s, _ := got.(string); s != nonce {
			return Claims{}, errors.New("oidc: nonce mismatch")
		}
	}

	c := Claims{Subject: tok.Subject()}
	if v, ok := tok.Get("email"); ok {
		c.Email, _ = v.(string)
	}
	if v, ok := tok.Get("email_verified"); ok {
		c.EmailVerified, _ = v.(bool)
	}
	if v, ok := tok.Get("name"); ok {
		c.Name, _ = v.(string)
	}
	if v, ok := tok.Get("picture"); ok {
		c.Picture, _ = v.(string)
	}
	if c.Subject == "" {
		return Claims{}, errors.New("oidc: id_token missing subject")
	}
	return c, nil
}
