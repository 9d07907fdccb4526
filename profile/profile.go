// Package profile defines the user profile document and the store
// contract the membership layer reads it through. The document itself
// is owned by the external store; this layer trusts only reads from it
// and never accepts membership state pushed from client code.
package profile

import (
	"context"

	"github.com/freevoice-app/memberkit/entitlement"
)

// Document is one user's profile as stored.
type Document struct {
	UserID     string             `json:"user_id"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	AvatarURL  string             `json:"avatar_url"`
	Membership entitlement.Record `json:"membership"`
}

// Store is the full profile-store contract: record reads and pushes
// for the entitlement observer, plus the write paths used by sign-in
// (EnsureProfile) and the payment webhook worker (UpdateMembership).
type Store interface {
	entitlement.RecordSource

	// GetDocument returns the whole profile, or nil if absent.
	GetDocument(ctx context.Context, userID string) (*Document, error)

	// EnsureProfile creates the profile on first sign-in; existing
	// profiles are left untouched.
	EnsureProfile(ctx context.Context, doc Document) error

	// UpdateMembership replaces the membership fields and notifies
	// watchers.
	UpdateMembership(ctx context.Context, userID string, rec entitlement.Record) error
}
