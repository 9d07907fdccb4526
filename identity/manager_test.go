package identity_test

import (
	"context"
	"testing"

	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/identity"
	"github.com/freevoice-app/memberkit/oidc"
	memorystore "github.com/freevoice-app/memberkit/storage/memory"
)

func TestHandleSignInCreatesProfile(t *testing.T) {
	store := memorystore.NewProfileStore()
	m := identity.NewManager(store, nil)

	u, err := m.HandleSignIn(context.Background(), oidc.Claims{
		Subject: "u1",
		Email:   "u1@example.com",
		Name:    "Alex",
		Picture: "https://img.example/u1.png",
	})
	if err != nil {
		t.Fatalf("HandleSignIn: %v", err)
	}
	if u.ID != "u1" || u.Email != "u1@example.com" {
		t.Fatalf("user = %+v", u)
	}
	if !m.Authenticated() {
		t.Fatal("manager must report authenticated")
	}

	doc, err := store.GetDocument(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc == nil {
		t.Fatal("profile must be created on first sign-in")
	}
	if doc.Membership.Tier != entitlement.TierFree {
		t.Fatalf("new profile tier = %q, want free", doc.Membership.Tier)
	}
	if doc.Membership.ExpiresAtMs != 0 {
		t.Fatal("new profile must start un-granted")
	}
}

func TestSignInDoesNotClobberMembership(t *testing.T) {
	store := memorystore.NewProfileStore()
	m := identity.NewManager(store, nil)

	ctx := context.Background()
	if _, err := m.HandleSignIn(ctx, oidc.Claims{Subject: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("first sign-in: %v", err)
	}
	if err := store.UpdateMembership(ctx, "u1", entitlement.Record{
		UserID: "u1", Tier: entitlement.TierYearly, Active: true, ExpiresAtMs: 9999999999999,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// Signing in again must not reset the granted membership.
	if _, err := m.HandleSignIn(ctx, oidc.Claims{Subject: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("second sign-in: %v", err)
	}
	doc, err := store.GetDocument(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Membership.Tier != entitlement.TierYearly {
		t.Fatalf("tier after re-sign-in = %q", doc.Membership.Tier)
	}
}

func TestSignOutBroadcasts(t *testing.T) {
	store := memorystore.NewProfileStore()
	m := identity.NewManager(store, nil)

	var events []*identity.User
	remove := m.OnAuthStateChanged(func(u *identity.User) {
		events = append(events, u)
	})
	defer remove()

	if _, err := m.HandleSignIn(context.Background(), oidc.Claims{Subject: "u1"}); err != nil {
		t.Fatalf("HandleSignIn: %v", err)
	}
	m.SignOut()

	if m.Authenticated() {
		t.Fatal("manager must report signed out")
	}
	if m.CurrentUser() != nil {
		t.Fatal("current user must be nil after sign-out")
	}
	if len(events) != 2 || events[0] == nil || events[1] != nil {
		t.Fatalf("auth events = %v", events)
	}
}
