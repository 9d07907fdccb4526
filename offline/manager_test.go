package offline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/offline"
	memorystore "github.com/freevoice-app/memberkit/storage/memory"
)

type allowGate struct {
	mu  sync.Mutex
	err error
}

func (g *allowGate) Offline() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

func (g *allowGate) deny(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type escalateSpy struct {
	mu      sync.Mutex
	reasons []string
}

func (e *escalateSpy) HardLock(reason string) {
	e.mu.Lock()
	e.reasons = append(e.reasons, reason)
	e.mu.Unlock()
}

func vaultKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newManager(t *testing.T) (*offline.Manager, *memorystore.VoiceVault, *allowGate) {
	t.Helper()
	vault := memorystore.NewVoiceVault()
	g := &allowGate{}
	m, err := offline.NewManager(vault, g, vaultKey(), nil, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, vault, g
}

func TestManagerRejectsShortKey(t *testing.T) {
	if _, err := offline.NewManager(memorystore.NewVoiceVault(), &allowGate{}, []byte("short"), nil, nil); err == nil {
		t.Fatal("short key must be rejected")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	payload := []byte("voice model weights")

	if err := m.Save(ctx, "v1", payload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := m.Load(ctx, "v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q", got)
	}
}

func TestLoadMissingVoice(t *testing.T) {
	m, _, _ := newManager(t)
	if _, err := m.Load(context.Background(), "nope"); !errors.Is(err, offline.ErrNotFound) {
		t.Fatalf("Load = %v, want ErrNotFound", err)
	}
}

func TestGateDenialBlocksVault(t *testing.T) {
	m, _, g := newManager(t)
	ctx := context.Background()
	if err := m.Save(ctx, "v1", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g.deny(&core.AccessError{Feature: "offline_voice", Reason: core.ReasonMembershipExpired})
	if _, err := m.Load(ctx, "v1"); err == nil {
		t.Fatal("denied gate must block Load")
	}
	if err := m.Save(ctx, "v2", []byte("y")); err == nil {
		t.Fatal("denied gate must block Save")
	}
}

func TestCorruptBundleInvalidatesVaultAndEscalates(t *testing.T) {
	m, vault, _ := newManager(t)
	ctx := context.Background()
	spy := &escalateSpy{}
	m.SetEscalator(spy)

	if err := m.Save(ctx, "v1", []byte("a")); err != nil {
		t.Fatalf("Save v1: %v", err)
	}
	if err := m.Save(ctx, "v2", []byte("b")); err != nil {
		t.Fatalf("Save v2: %v", err)
	}
	vault.Corrupt("v1")

	if _, err := m.Load(ctx, "v1"); !errors.Is(err, core.ErrTampered) {
		t.Fatalf("Load corrupt = %v, want ErrTampered", err)
	}

	// The whole vault is gone and offline access is locked.
	if _, err := m.Load(ctx, "v2"); errors.Is(err, core.ErrTampered) {
		t.Fatal("v2 should be denied by the lock, not flagged as tampered")
	} else if err == nil {
		t.Fatal("vault must be locked after tampering")
	}

	spy.mu.Lock()
	defer spy.mu.Unlock()
	if len(spy.reasons) != 1 || spy.reasons[0] != "tampered" {
		t.Fatalf("escalations = %v", spy.reasons)
	}
}

func TestSweepDetectsTampering(t *testing.T) {
	m, vault, _ := newManager(t)
	ctx := context.Background()
	if err := m.Save(ctx, "v1", []byte("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Sweep(ctx); err != nil {
		t.Fatalf("Sweep clean vault: %v", err)
	}

	vault.Corrupt("v1")
	if err := m.Sweep(ctx); !errors.Is(err, core.ErrTampered) {
		t.Fatalf("Sweep = %v, want ErrTampered", err)
	}
}

func TestInvalidateAllAndUnlock(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	if err := m.Save(ctx, "v1", []byte("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if _, err := m.Load(ctx, "v1"); err == nil {
		t.Fatal("locked vault must deny loads")
	}

	m.Unlock()
	if _, err := m.Load(ctx, "v1"); !errors.Is(err, offline.ErrNotFound) {
		t.Fatalf("Load after unlock = %v, want ErrNotFound (bundles were discarded)", err)
	}
}
