package entitlement

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/freevoice-app/memberkit/core"
)

// Observer bridges record pushes from the profile store into snapshot
// replacements and serves the latest snapshot to synchronous callers.
// It fails closed: before Start, after Stop, and until the first
// successful read it serves the locked snapshot.
//
// The snapshot slot has freshest-wins semantics: a push-derived
// snapshot and an enforcement-tick recomputation both land here, and
// the one computed later (by ObservedAt) replaces the other regardless
// of arrival order.
type Observer struct {
	store RecordSource
	clock core.Clock
	log   logrus.FieldLogger

	mu        sync.Mutex
	snap      Snapshot
	snapSum   uint64
	rec       *Record
	unsub     func()
	started   bool
	userID    string
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewObserver constructs an observer over the given record source.
// A nil logger discards output.
func NewObserver(store RecordSource, clock core.Clock, log logrus.FieldLogger) *Observer {
	if clock == nil {
		clock = core.SystemClock()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	o := &Observer{
		store:     store,
		clock:     clock,
		log:       log,
		listeners: make(map[int]func(Snapshot)),
	}
	o.install(Locked(clock.Now()))
	return o
}

// Start subscribes to record changes for userID. The initial read is
// best-effort: a store failure leaves entitlement locked (never open)
// until a later push succeeds. Calling Start on a started observer is
// a no-op.
func (o *Observer) Start(ctx context.Context, userID string) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.userID = userID
	o.mu.Unlock()

	rec, err := o.store.Get(ctx, userID)
	if err != nil {
		o.log.WithError(err).WithField("user_id", userID).
			Warn("initial membership read failed; staying locked")
	} else {
		o.apply(rec)
	}

	unsub, err := o.store.Watch(ctx, userID, o.apply)
	if err != nil {
		o.mu.Lock()
		o.started = false
		o.userID = ""
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	if !o.started {
		// Stop raced the subscription; release it.
		o.mu.Unlock()
		unsub()
		return nil
	}
	o.unsub = unsub
	o.mu.Unlock()
	return nil
}

// Stop releases the subscription and discards the cached snapshot and
// record. It is idempotent.
func (o *Observer) Stop() {
	o.mu.Lock()
	unsub := o.unsub
	o.unsub = nil
	o.started = false
	o.userID = ""
	o.rec = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	o.replace(Locked(o.clock.Now()))
}

// UserID returns the user the observer is attached to, or "".
func (o *Observer) UserID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.userID
}

// Snapshot returns the most recent cached snapshot. It never blocks
// and never reads the store.
func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Subscribe registers fn to run on every snapshot replacement and
// returns its remove func.
func (o *Observer) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// Recompute re-derives entitlement from the last known record against
// the current clock. This catches pure time-based expiry between
// pushes. It returns the snapshot before and after recomputation.
func (o *Observer) Recompute() (prev, next Snapshot) {
	o.mu.Lock()
	prev = o.snap
	rec := o.rec
	o.mu.Unlock()

	next = Resolve(rec, o.clock.Now())
	o.replace(next)
	return prev, next
}

// Verify checks the cached snapshot against its checksum taken at
// install time. A mismatch means the slot was mutated outside the
// observer and is treated as a security event by the enforcement loop.
func (o *Observer) Verify() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if snapshotSum(o.snap) != o.snapSum {
		return core.ErrTampered
	}
	return nil
}

// apply resolves a pushed record (nil = document removed) and installs
// the result.
func (o *Observer) apply(rec *Record) {
	now := o.clock.Now()
	o.mu.Lock()
	o.rec = rec
	o.mu.Unlock()
	o.replace(Resolve(rec, now))
}

// replace installs snap unless the cached snapshot was computed later,
// then notifies listeners outside the lock.
func (o *Observer) replace(snap Snapshot) {
	o.mu.Lock()
	if snap.ObservedAt.Before(o.snap.ObservedAt) {
		o.mu.Unlock()
		return
	}
	o.install(snap)
	fns := make([]func(Snapshot), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// install must be called with o.mu held (or before the observer is
// shared).
func (o *Observer) install(snap Snapshot) {
	o.snap = snap
	o.snapSum = snapshotSum(snap)
}

func snapshotSum(s Snapshot) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	if s.IsActive {
		buf[0] = 1
	}
	_, _ = h.Write(buf[:1])
	binary.LittleEndian.PutUint64(buf[:], uint64(s.Remaining))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(s.Tier))
	binary.LittleEndian.PutUint64(buf[:], uint64(s.ObservedAt.UnixNano()))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
