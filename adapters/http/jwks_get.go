// Package memberhttp exposes the framework-free HTTP pieces: the JWKS
// document other services use to verify our session tokens.
package memberhttp

import (
	"net/http"

	jwtkit "github.com/freevoice-app/memberkit/jwt"
)

// JWKSHandler serves the public key set for session token
// verification.
func JWKSHandler(ks jwtkit.JWKS) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, ks)
	})
}
