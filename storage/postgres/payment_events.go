package pgstore

import (
	"context"
	"fmt"

	"github.com/freevoice-app/memberkit/core"
)

type paymentEventRow struct {
	EventID string `bun:"event_id,pk"`
	UserID  string `bun:"user_id"`
	PlanID  string `bun:"plan_id"`
}

// MarkProcessed records a payment event id, returning false when it
// was seen before. Backs grant idempotency across webhook retries.
func (s *Store) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.NewInsert().
		Model(&paymentEventRow{EventID: eventID}).
		ModelTableExpr("payment_events").
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
