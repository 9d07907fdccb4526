// Package gate exposes the synchronous feature gates consulted before
// any gated capability runs: live voice, ultra voices, and offline
// voice access. A gate reads the cached entitlement snapshot only and
// never blocks, so it is safe to call from the per-audio-cycle path.
package gate

import (
	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
)

// Feature names used in denial errors.
const (
	FeatureLive    = "live_voice"
	FeatureUltra   = "ultra_voice"
	FeatureOffline = "offline_voice"
)

// Flags are the global capability switches from app configuration.
type Flags struct {
	LiveEnabled    bool
	UltraEnabled   bool
	OfflineEnabled bool
}

// AuthState reports whether a user is currently signed in.
type AuthState interface {
	Authenticated() bool
}

// Gates authorizes gated features against the entitlement source, the
// process lock signal, and global flags. A denial is terminal for that
// call; callers re-invoke after the user renews.
type Gates struct {
	src   entitlement.Source
	lock  *entitlement.Lock
	auth  AuthState
	flags Flags

	// onLiveDenied runs when the live gate denies. The session
	// controller hooks this so a denial during an active session tears
	// the session down rather than only failing future starts.
	onLiveDenied func()
}

// New builds the gate set. auth must not be nil; lock may be.
func New(src entitlement.Source, lock *entitlement.Lock, auth AuthState, flags Flags) *Gates {
	return &Gates{src: src, lock: lock, auth: auth, flags: flags}
}

// SetLiveDeniedHook wires the teardown hook for live-gate denials.
func (g *Gates) SetLiveDeniedHook(fn func()) { g.onLiveDenied = fn }

// Live authorizes real-time voice processing.
func (g *Gates) Live() error {
	if err := g.authorize(FeatureLive, g.flags.LiveEnabled); err != nil {
		if g.onLiveDenied != nil {
			g.onLiveDenied()
		}
		return err
	}
	return nil
}

// Ultra authorizes ultra-realistic voices.
func (g *Gates) Ultra() error {
	return g.authorize(FeatureUltra, g.flags.UltraEnabled)
}

// Offline authorizes offline voice access. Free-tier content never
// expires: it stays readable offline regardless of entitlement. Every
// other tier requires an active membership.
func (g *Gates) Offline() error {
	if !g.auth.Authenticated() {
		return core.ErrUnauthenticated
	}
	if !g.flags.OfflineEnabled {
		return &core.AccessError{Feature: FeatureOffline, Reason: core.ReasonFeatureDisabled}
	}
	snap := g.src.Snapshot()
	if snap.Tier == entitlement.TierFree {
		return nil
	}
	if g.lock.Locked() || !snap.IsActive {
		return &core.AccessError{Feature: FeatureOffline, Reason: core.ReasonMembershipExpired}
	}
	return nil
}

func (g *Gates) authorize(feature string, enabled bool) error {
	if !g.auth.Authenticated() {
		return core.ErrUnauthenticated
	}
	if !enabled {
		return &core.AccessError{Feature: feature, Reason: core.ReasonFeatureDisabled}
	}
	if g.lock.Locked() || !g.src.Snapshot().IsActive {
		return &core.AccessError{Feature: feature, Reason: core.ReasonMembershipExpired}
	}
	return nil
}
