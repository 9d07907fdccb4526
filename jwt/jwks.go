package jwtkit

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
)

// JWK carries the minimal fields for an RSA public key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// KeySetFor builds the JWKS for the given public keys.
func KeySetFor(keys map[string]*rsa.PublicKey) JWKS {
	var ks JWKS
	for kid, pub := range keys {
		ks.Keys = append(ks.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Kid: kid,
			Alg: "RS256",
			N:   base64URLEncode(pub.N),
			E:   base64URLEncode(big.NewInt(int64(pub.E))),
		})
	}
	return ks
}

// ServeJWKS writes JWKS JSON with cache headers and ETag support.
func ServeJWKS(w http.ResponseWriter, r *http.Request, ks JWKS) {
	b, _ := json.Marshal(ks)
	sum := sha256.Sum256(b)
	etag := "\"" + hex.EncodeToString(sum[:]) + "\""

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(b)
}

func base64URLEncode(n *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(n.Bytes())
}
