package entitlement

import (
	"context"
	"fmt"
	"time"
)

// Tier is the subscription category determining which features are
// gated. Unknown values are treated as invalid and resolve to locked.
type Tier string

const (
	TierNone    Tier = "none"
	TierFree    Tier = "free"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
	TierUltra   Tier = "ultra_addon"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierNone, TierFree, TierWeekly, TierMonthly, TierYearly, TierUltra:
		return true
	}
	return false
}

// Record is the durable subscription state owned by the profile store.
// The Active flag is authoritative only immediately after a write; it
// goes stale as time passes, so derived entitlement never trusts it
// alone; expiry governs.
type Record struct {
	UserID      string `json:"user_id"`
	Tier        Tier   `json:"tier"`
	Active      bool   `json:"active"`
	ExpiresAtMs int64  `json:"expires_at_ms"` // epoch ms; 0 means never granted
}

// Snapshot is an immutable point-in-time entitlement computation.
// It is passed and cached by value: holders cannot mutate the slot the
// observer serves from, only replace it wholesale.
type Snapshot struct {
	IsActive   bool
	Remaining  time.Duration
	Tier       Tier
	ObservedAt time.Time
}

// RemainingMs returns the remaining entitlement duration in epoch-style
// milliseconds, clamped at zero.
func (s Snapshot) RemainingMs() int64 {
	if s.Remaining <= 0 {
		return 0
	}
	return s.Remaining.Milliseconds()
}

// Countdown renders the remaining entitlement as an HH:MM:SS string
// for display.
func (s Snapshot) Countdown() string {
	return FormatRemaining(s.Remaining)
}

// FormatRemaining renders a duration as an HH:MM:SS countdown, clamped
// at zero. Hours accumulate rather than wrap, so a monthly membership
// starts at "720:00:00".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Locked returns the fail-closed snapshot used before any successful
// read, after sign-out, and for malformed records.
func Locked(now time.Time) Snapshot {
	return Snapshot{IsActive: false, Remaining: 0, Tier: TierNone, ObservedAt: now}
}

// Source serves the latest snapshot synchronously. Gates and the
// session controller read entitlement through this; the call must never
// block or touch the network.
type Source interface {
	Snapshot() Snapshot
}

// RecordSource delivers subscription records for a user. Watch pushes
// every change of the user's record to fn until the returned
// unsubscribe func is called; a removed document is delivered as nil.
type RecordSource interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Watch(ctx context.Context, userID string, fn func(*Record)) (func(), error)
}
