// Package testkit provides test doubles for the membership stack: a
// session token issuer with a live JWKS endpoint, a fake clock, and
// fake audio hardware. Integration tests run the real state machines
// against these instead of Google, speakers and wall time.
package testkit

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/freevoice-app/memberkit/jwt"
)

// TestIssuer signs session tokens that validate against the JWKS it
// serves. Call Close when done.
type TestIssuer struct {
	server *httptest.Server
	signer *jwtkit.RSASigner
}

// NewTestIssuer generates a key pair and starts the JWKS server.
func NewTestIssuer() *TestIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	ti := &TestIssuer{signer: signer}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, jwtkit.KeySetFor(ti.keys()))
	})
	ti.server = httptest.NewServer(mux)
	return ti
}

func (ti *TestIssuer) keys() map[string]*rsa.PublicKey {
	return map[string]*rsa.PublicKey{ti.signer.KID(): ti.signer.PublicKey()}
}

// URL returns the base URL of the JWKS server.
func (ti *TestIssuer) URL() string { return ti.server.URL }

// Close shuts down the JWKS server.
func (ti *TestIssuer) Close() { ti.server.Close() }

// Verifier returns a verifier trusting this issuer's key.
func (ti *TestIssuer) Verifier() *jwtkit.Verifier {
	return jwtkit.NewVerifier(ti.keys())
}

// Signer exposes the underlying signer for tests that need it.
func (ti *TestIssuer) Signer() *jwtkit.RSASigner { return ti.signer }

// SessionToken issues a one-hour token for the user.
func (ti *TestIssuer) SessionToken(userID, email string) string {
	tok, err := jwtkit.IssueSession(context.Background(), ti.signer, userID, email, "", nil, time.Hour)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return tok
}

// ExpiredToken issues a token that expired an hour ago.
func (ti *TestIssuer) ExpiredToken(userID, email string) string {
	now := time.Now()
	claims := jwtkit.SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	tok, err := ti.signer.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return tok
}
