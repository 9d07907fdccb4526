package entitlement

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/freevoice-app/memberkit/core"
)

// DefaultRecheckInterval bounds entitlement staleness when no push
// arrives. Tunable via EnforcerConfig; this matches the product's
// five-second force-recheck window.
const DefaultRecheckInterval = 5 * time.Second

// SessionStopper is the live session teardown entry point. HardStop
// must be synchronous and idempotent: the enforcement loop calls it
// directly so teardown completes before the hard-lock returns.
type SessionStopper interface {
	HardStop()
}

// OfflineVault is the offline-access side of a hard-lock: a lock
// discards cached bundles and blocks the vault, a renewal re-opens it.
// Without the Unlock half a renewed user would stay blocked until
// process restart.
type OfflineVault interface {
	InvalidateAll(ctx context.Context) error
	Unlock()
}

// RecordDowngrader best-effort writes the expired state back to the
// profile store. Failures are swallowed; local enforcement applies
// regardless.
type RecordDowngrader interface {
	Downgrade(ctx context.Context, userID string) error
}

// EnforcerConfig wires the hard-lock targets. Only Interval has a
// default; every collaborator is optional and skipped when nil.
type EnforcerConfig struct {
	Interval time.Duration
	Session  SessionStopper
	Vault    OfflineVault
	Store    RecordDowngrader
	Audit    core.MembershipEventLogger
	Logger   logrus.FieldLogger
}

// Enforcer is the periodic re-check loop. Each tick recomputes
// entitlement from the last known record against the current clock,
// since a push-based snapshot goes stale purely from clock
// advancement, and on the transition from active to expired it
// hard-locks before the tick returns.
type Enforcer struct {
	obs  *Observer
	lock *Lock
	cfg  EnforcerConfig
	log  logrus.FieldLogger

	mu       sync.Mutex
	cron     *cron.Cron
	fired    bool
	unsub    func()
	expired  map[int]func()
	nextID   int
	lockedBy string
}

// NewEnforcer builds an enforcement loop over obs, tripping lock on
// expiry or tamper detection.
func NewEnforcer(obs *Observer, lock *Lock, cfg EnforcerConfig) *Enforcer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRecheckInterval
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Enforcer{
		obs:     obs,
		lock:    lock,
		cfg:     cfg,
		log:     log,
		expired: make(map[int]func()),
	}
}

// Start arms the recurring re-check. Idempotent while running.
func (e *Enforcer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", e.cfg.Interval), e.tick); err != nil {
		return fmt.Errorf("arm enforcement timer: %w", err)
	}

	e.fired = false
	e.unsub = e.obs.Subscribe(e.onSnapshot)
	e.cron = c
	c.Start()
	return nil
}

// Stop cancels the timer and releases the snapshot subscription.
// Idempotent, and safe to call from within a tick.
func (e *Enforcer) Stop() {
	e.mu.Lock()
	c := e.cron
	unsub := e.unsub
	e.cron = nil
	e.unsub = nil
	e.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	if unsub != nil {
		unsub()
	}
}

// OnExpired registers fn for the expiry broadcast. It fires at most
// once per transition to expired; renewal re-arms it. The returned
// func removes the listener.
func (e *Enforcer) OnExpired(fn func()) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.expired[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.expired, id)
		e.mu.Unlock()
	}
}

// HardLock runs the full lock action: stop the live session (teardown
// completes before return), invalidate offline markers, raise the lock
// signal, best-effort downgrade the stored record, broadcast expiry
// once, and audit. Exported so tamper detection in other components
// can escalate directly.
func (e *Enforcer) HardLock(reason string) {
	userID := e.obs.UserID()
	e.log.WithFields(logrus.Fields{"user_id": userID, "reason": reason}).
		Warn("membership hard-lock")

	if e.cfg.Session != nil {
		e.cfg.Session.HardStop()
	}
	if e.cfg.Vault != nil {
		if err := e.cfg.Vault.InvalidateAll(context.Background()); err != nil {
			e.log.WithError(err).Warn("offline marker invalidation failed")
		}
	}
	e.lock.Trip()
	if e.cfg.Store != nil && userID != "" {
		// Best-effort write-back; local enforcement already applies.
		if err := e.cfg.Store.Downgrade(context.Background(), userID); err != nil {
			e.log.WithError(err).Debug("membership downgrade write failed")
		}
	}

	e.mu.Lock()
	already := e.fired
	e.fired = true
	e.lockedBy = reason
	fns := make([]func(), 0, len(e.expired))
	if !already {
		for _, fn := range e.expired {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}

	if e.cfg.Audit != nil {
		_ = e.cfg.Audit.LogLock(context.Background(), userID, reason)
	}
}

// tick is the enforcement body. Any panic from collaborators releases
// the timer instead of leaking it.
func (e *Enforcer) tick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Error("enforcement tick panicked; stopping loop")
			e.Stop()
		}
	}()

	if err := e.obs.Verify(); err != nil {
		// Mutated snapshot slot: security event, not a denial.
		e.HardLock("tampered")
		return
	}

	prev, next := e.obs.Recompute()
	if prev.IsActive && !next.IsActive {
		e.HardLock(string(core.ReasonMembershipExpired))
	}
}

// onSnapshot re-arms the expiry broadcast and clears the lock signal
// and the vault block when a renewal lands.
func (e *Enforcer) onSnapshot(s Snapshot) {
	if !s.IsActive {
		return
	}
	e.mu.Lock()
	e.fired = false
	e.lockedBy = ""
	e.mu.Unlock()
	e.lock.Reset()
	if e.cfg.Vault != nil {
		e.cfg.Vault.Unlock()
	}
}
