package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
	"github.com/freevoice-app/memberkit/gate"
	"github.com/freevoice-app/memberkit/offline"
	"github.com/freevoice-app/memberkit/session"
	memorystore "github.com/freevoice-app/memberkit/storage/memory"
	testkit "github.com/freevoice-app/memberkit/testing"
)

type signedIn struct{}

func (signedIn) Authenticated() bool { return true }

// The full revocation path: a running live session, the membership
// expires between pushes, the enforcement tick catches it and tears
// everything down before the next audio cycle can emit voice.
func TestMembershipExpiryTearsDownLiveSession(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := testkit.NewFakeClock(start)
	store := memorystore.NewProfileStore()

	if err := store.UpdateMembership(ctx, "u1", entitlement.Record{
		UserID:      "u1",
		Tier:        entitlement.TierMonthly,
		Active:      true,
		ExpiresAtMs: start.Add(30 * time.Second).UnixMilli(),
	}); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	obs := entitlement.NewObserver(store, clock, nil)
	if err := obs.Start(ctx, "u1"); err != nil {
		t.Fatalf("start observer: %v", err)
	}
	defer obs.Stop()

	lock := &entitlement.Lock{}
	gates := gate.New(obs, lock, signedIn{}, gate.Flags{
		LiveEnabled:    true,
		UltraEnabled:   true,
		OfflineEnabled: true,
	})

	device := &testkit.FakeDevice{}
	pipe := &testkit.FakePipeline{}
	ctrl := session.NewController(device, pipe, gates, nil)
	gates.SetLiveDeniedHook(ctrl.HardStop)

	key := make([]byte, 32)
	vault, err := offline.NewManager(memorystore.NewVoiceVault(), gates, key, clock, nil)
	if err != nil {
		t.Fatalf("offline manager: %v", err)
	}

	var expired atomic.Int32
	enf := entitlement.NewEnforcer(obs, lock, entitlement.EnforcerConfig{
		Interval: 50 * time.Millisecond,
		Session:  ctrl,
		Vault:    vault,
		Store:    store,
	})
	enf.OnExpired(func() { expired.Add(1) })
	if err := enf.Start(); err != nil {
		t.Fatalf("start enforcer: %v", err)
	}
	defer enf.Stop()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if out := pipe.Cycle(16); out == nil || out[0] == 0 {
		t.Fatal("entitled session must produce audio")
	}
	if err := vault.Save(ctx, "v1", []byte("weights")); err != nil {
		t.Fatalf("save offline bundle: %v", err)
	}

	clock.Advance(time.Minute)

	deadline := time.Now().Add(5 * time.Second)
	for ctrl.IsLiveVoiceActive() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if ctrl.IsLiveVoiceActive() {
		t.Fatal("expiry must clear the live indicator")
	}
	if ctrl.CurrentState() != session.Idle {
		t.Fatalf("state = %v, want idle", ctrl.CurrentState())
	}
	if !lock.Locked() {
		t.Fatal("expiry must trip the lock")
	}
	if reason, ok := core.Denied(gates.Live()); !ok || reason != core.ReasonMembershipExpired {
		t.Fatalf("live gate after expiry: %q (%v)", reason, ok)
	}
	if got := expired.Load(); got != 1 {
		t.Fatalf("expiry broadcast %d times, want 1", got)
	}
	if err := vault.Save(ctx, "v2", []byte("weights")); err == nil {
		t.Fatal("expired membership must block offline saves")
	}

	// A renewal push re-opens everything without a restart.
	if err := store.UpdateMembership(ctx, "u1", entitlement.Record{
		UserID:      "u1",
		Tier:        entitlement.TierMonthly,
		Active:      true,
		ExpiresAtMs: clock.Now().Add(time.Hour).UnixMilli(),
	}); err != nil {
		t.Fatalf("renew membership: %v", err)
	}
	if err := gates.Live(); err != nil {
		t.Fatalf("live gate after renewal: %v", err)
	}
	if err := vault.Save(ctx, "v3", []byte("weights")); err != nil {
		t.Fatalf("offline access must reopen after renewal: %v", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("restart session: %v", err)
	}
	if !ctrl.IsLiveVoiceActive() {
		t.Fatal("session must be restartable after renewal")
	}
}
