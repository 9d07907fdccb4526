package memorystore

import (
	"context"
	"sync"
)

// PaymentEvents is an in-memory checkout.Dedup.
type PaymentEvents struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewPaymentEvents() *PaymentEvents {
	return &PaymentEvents{seen: make(map[string]struct{})}
}

func (p *PaymentEvents) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[eventID]; ok {
		return false, nil
	}
	p.seen[eventID] = struct{}{}
	return true, nil
}
