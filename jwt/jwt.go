// Package jwtkit issues and verifies the app's own session tokens:
// after a Google sign-in the backend hands the client a short-lived
// RS256 token, and the gin adapter authenticates API calls with it.
package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a memberkit session token.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues signed session tokens.
type Signer interface {
	// KID returns the current key id.
	KID() string
	// Sign creates a signed token from claims.
	Sign(ctx context.Context, claims SessionClaims) (string, error)
}

// RSASigner is a minimal in-memory RS256 signer. Production loads the
// key from managed secrets; tests and dev generate one.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

// NewRSASigner generates a fresh RSA key of the given size.
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

// NewRSASignerFromPEM constructs a signer from a PEM-encoded private
// key (PKCS#1 or PKCS#8).
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("failed to decode RSA private key pem")
	}
	var parsed *rsa.PrivateKey
	var err error
	switch blk.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(blk.Bytes)
	default:
		var key any
		key, err = x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err == nil {
			var ok bool
			if parsed, ok = key.(*rsa.PrivateKey); !ok {
				err = errors.New("pkcs8 key is not RSA private key")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: parsed, kid: kid}, nil
}

func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// Sign creates a signed session token.
func (s *RSASigner) Sign(_ context.Context, claims SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// IssueSession builds and signs a session token for the user.
func IssueSession(ctx context.Context, s Signer, userID, email, name string, audience []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return s.Sign(ctx, claims)
}

// Verifier validates session tokens against a set of public keys by
// key id.
type Verifier struct {
	keys map[string]*rsa.PublicKey
}

// NewVerifier builds a verifier over kid -> public key.
func NewVerifier(keys map[string]*rsa.PublicKey) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses and validates a session token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("session token missing subject")
	}
	return claims, nil
}
