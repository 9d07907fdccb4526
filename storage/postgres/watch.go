package pgstore

import (
	"context"
	"fmt"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/entitlement"
)

// Watch subscribes to membership pushes for userID. It holds a
// dedicated connection on LISTEN and re-reads the record whenever the
// trigger fires for that user. The returned func releases the
// connection; it is safe to call more than once.
func (s *Store) Watch(ctx context.Context, userID string, fn func(*entitlement.Record)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	go func() {
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.WithError(err).Warn("profile watch connection lost")
				}
				return
			}
			if n.Payload != userID {
				continue
			}
			// Re-read outside the canceled-context path so a teardown
			// race cannot surface a spurious locked push.
			rec, err := s.Get(context.Background(), userID)
			if err != nil {
				s.log.WithError(err).Warn("profile re-read after notify failed")
				continue
			}
			fn(rec)
		}
	}()

	return cancel, nil
}
