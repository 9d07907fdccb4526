package core

import (
	"context"
)

// MembershipEventLogger records membership lifecycle events to an
// external sink. Implementations should be non-blocking and
// best-effort; enforcement never waits on audit.
type MembershipEventLogger interface {
	LogGrant(ctx context.Context, userID, tier string, expiresAtMs int64, source string) error
	LogLock(ctx context.Context, userID, reason string) error
}
