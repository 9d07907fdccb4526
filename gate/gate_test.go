package gate_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/gate"
)

type fakeSnap struct {
	mu   sync.Mutex
	snap entitlement.Snapshot
}

func (f *fakeSnap) Snapshot() entitlement.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnap) set(s entitlement.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

type fakeAuth struct{ signedIn bool }

func (a *fakeAuth) Authenticated() bool { return a.signedIn }

func allEnabled() gate.Flags {
	return gate.Flags{LiveEnabled: true, UltraEnabled: true, OfflineEnabled: true}
}

func activeSnap(tier entitlement.Tier) entitlement.Snapshot {
	return entitlement.Snapshot{
		IsActive:   true,
		Remaining:  time.Hour,
		Tier:       tier,
		ObservedAt: time.Now(),
	}
}

func TestGatesRequireAuthentication(t *testing.T) {
	src := &fakeSnap{snap: activeSnap(entitlement.TierMonthly)}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: false}, allEnabled())

	for name, check := range map[string]func() error{
		"live":    g.Live,
		"ultra":   g.Ultra,
		"offline": g.Offline,
	} {
		if err := check(); !errors.Is(err, core.ErrUnauthenticated) {
			t.Fatalf("%s gate = %v, want ErrUnauthenticated", name, err)
		}
	}
}

func TestGatesDenyDisabledFeature(t *testing.T) {
	src := &fakeSnap{snap: activeSnap(entitlement.TierMonthly)}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: true}, gate.Flags{})

	for name, check := range map[string]func() error{
		"live":    g.Live,
		"ultra":   g.Ultra,
		"offline": g.Offline,
	} {
		reason, ok := core.Denied(check())
		if !ok || reason != core.ReasonFeatureDisabled {
			t.Fatalf("%s gate reason = %q (%v)", name, reason, ok)
		}
	}
}

func TestGatesAllowActiveMembership(t *testing.T) {
	src := &fakeSnap{snap: activeSnap(entitlement.TierMonthly)}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: true}, allEnabled())

	if err := g.Live(); err != nil {
		t.Fatalf("Live: %v", err)
	}
	if err := g.Ultra(); err != nil {
		t.Fatalf("Ultra: %v", err)
	}
	if err := g.Offline(); err != nil {
		t.Fatalf("Offline: %v", err)
	}
}

func TestGatesDenyExpiredMembership(t *testing.T) {
	src := &fakeSnap{snap: entitlement.Locked(time.Now())}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: true}, allEnabled())

	reason, ok := core.Denied(g.Live())
	if !ok || reason != core.ReasonMembershipExpired {
		t.Fatalf("Live reason = %q (%v)", reason, ok)
	}
}

func TestGatesHonorLockSignal(t *testing.T) {
	src := &fakeSnap{snap: activeSnap(entitlement.TierMonthly)}
	lock := &entitlement.Lock{}
	g := gate.New(src, lock, &fakeAuth{signedIn: true}, allEnabled())

	lock.Trip()
	if reason, ok := core.Denied(g.Live()); !ok || reason != core.ReasonMembershipExpired {
		t.Fatalf("tripped lock: reason = %q (%v)", reason, ok)
	}
	lock.Reset()
	if err := g.Live(); err != nil {
		t.Fatalf("reset lock: %v", err)
	}
}

func TestOfflineFreeTierNeverExpires(t *testing.T) {
	snap := entitlement.Snapshot{
		IsActive:   false,
		Tier:       entitlement.TierFree,
		ObservedAt: time.Now(),
	}
	src := &fakeSnap{snap: snap}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: true}, allEnabled())

	if err := g.Offline(); err != nil {
		t.Fatalf("free tier offline: %v", err)
	}
	// Paid tiers do expire offline.
	src.set(entitlement.Snapshot{IsActive: false, Tier: entitlement.TierMonthly, ObservedAt: time.Now()})
	if reason, ok := core.Denied(g.Offline()); !ok || reason != core.ReasonMembershipExpired {
		t.Fatalf("expired paid tier offline: reason = %q (%v)", reason, ok)
	}
}

func TestLiveDenialFiresHook(t *testing.T) {
	src := &fakeSnap{snap: entitlement.Locked(time.Now())}
	g := gate.New(src, &entitlement.Lock{}, &fakeAuth{signedIn: true}, allEnabled())

	var fired int
	g.SetLiveDeniedHook(func() { fired++ })

	_ = g.Live()
	if fired != 1 {
		t.Fatalf("hook fired %d times, want 1", fired)
	}

	src.set(activeSnap(entitlement.TierMonthly))
	if err := g.Live(); err != nil {
		t.Fatalf("Live after renewal: %v", err)
	}
	if fired != 1 {
		t.Fatal("hook must not fire on allow")
	}
}
