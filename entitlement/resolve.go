package entitlement

import "time"

// Resolve derives a Snapshot from a raw subscription record and the
// current time. It is pure and total: nil or malformed records resolve
// to locked, never to an error. Expiry is exclusive: a record whose
// expiry equals now is already expired.
//
// The record's Active flag is deliberately ignored: it is only
// authoritative at write time, and a stale true must not unlock
// anything the expiry timestamp no longer supports.
func Resolve(rec *Record, now time.Time) Snapshot {
	if rec == nil {
		return Locked(now)
	}
	if !rec.Tier.Valid() || rec.Tier == TierNone {
		// Missing or unknown tier is a malformed record: locked, but
		// never a crash.
		return Locked(now)
	}
	if rec.ExpiresAtMs <= 0 {
		// Never granted (or negative garbage). Tier is preserved so the
		// offline gate can honor the free-tier exception.
		return Snapshot{IsActive: false, Remaining: 0, Tier: rec.Tier, ObservedAt: now}
	}

	expiry := time.UnixMilli(rec.ExpiresAtMs)
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return Snapshot{IsActive: false, Remaining: 0, Tier: rec.Tier, ObservedAt: now}
	}
	return Snapshot{IsActive: true, Remaining: remaining, Tier: rec.Tier, ObservedAt: now}
}
