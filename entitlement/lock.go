package entitlement

import "sync/atomic"

// Lock is the process-wide lock signal raised by a hard-lock. Gates
// consult it on every authorize call; calls already in flight are not
// retroactively failed, only calls made after the trip. It stays
// tripped until renewal produces an active snapshot again.
type Lock struct {
	tripped atomic.Bool
}

// Locked reports whether the signal is raised. Nil-safe.
func (l *Lock) Locked() bool {
	if l == nil {
		return false
	}
	return l.tripped.Load()
}

// Trip raises the signal.
func (l *Lock) Trip() {
	if l != nil {
		l.tripped.Store(true)
	}
}

// Reset clears the signal after a renewal.
func (l *Lock) Reset() {
	if l != nil {
		l.tripped.Store(false)
	}
}
