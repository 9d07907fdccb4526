package core

import "time"

// Clock supplies wall-clock readings to components that derive
// entitlement from expiry timestamps. Injecting it keeps the resolver
// and enforcement loop deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a func to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }
