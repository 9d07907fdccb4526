package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freevoice-app/memberkit/core"
)

// fakeSource is a scriptable RecordSource capturing the watch callback
// so tests can push record changes.
type fakeSource struct {
	mu       sync.Mutex
	rec      *Record
	getErr   error
	watchErr error
	push     func(*Record)
	unsubbed int
}

func (s *fakeSource) Get(_ context.Context, _ string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.rec, nil
}

func (s *fakeSource) Watch(_ context.Context, _ string, fn func(*Record)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	s.push = fn
	return func() {
		s.mu.Lock()
		s.unsubbed++
		s.mu.Unlock()
	}, nil
}

func (s *fakeSource) pushRecord(rec *Record) {
	s.mu.Lock()
	fn := s.push
	s.mu.Unlock()
	fn(rec)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func activeRecord(clock *fakeClock, ttl time.Duration) *Record {
	return &Record{
		UserID:      "u1",
		Tier:        TierMonthly,
		Active:      true,
		ExpiresAtMs: clock.Now().Add(ttl).UnixMilli(),
	}
}

func TestObserverLockedBeforeStart(t *testing.T) {
	clock := &fakeClock{now: testNow}
	o := NewObserver(&fakeSource{}, clock, nil)
	if snap := o.Snapshot(); snap.IsActive {
		t.Fatal("observer must serve locked before Start")
	}
}

func TestObserverStartReadsInitialRecord(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	src.rec = activeRecord(clock, time.Hour)
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := o.Snapshot()
	if !snap.IsActive || snap.Tier != TierMonthly {
		t.Fatalf("snapshot = %+v", snap)
	}
	if o.UserID() != "u1" {
		t.Fatalf("userID = %q", o.UserID())
	}
}

func TestObserverStaysLockedOnInitialReadFailure(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{getErr: errors.New("store down")}
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := o.Snapshot(); snap.IsActive {
		t.Fatal("failed initial read must not unlock")
	}
}

func TestObserverWatchFailurePropagates(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{watchErr: errors.New("no subscription")}
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err == nil {
		t.Fatal("Start must fail when the watch cannot attach")
	}
	// A failed Start leaves the observer restartable.
	src.mu.Lock()
	src.watchErr = nil
	src.mu.Unlock()
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
}

func TestObserverAppliesPushes(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []Snapshot
	var mu sync.Mutex
	remove := o.Subscribe(func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	defer remove()

	clock.advance(time.Second)
	src.pushRecord(activeRecord(clock, time.Hour))
	if snap := o.Snapshot(); !snap.IsActive {
		t.Fatalf("push not applied: %+v", snap)
	}

	// Document removal pushes nil and locks.
	clock.advance(time.Second)
	src.pushRecord(nil)
	if snap := o.Snapshot(); snap.IsActive || snap.Tier != TierNone {
		t.Fatalf("removed document must lock, got %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("listener ran %d times, want 2", len(got))
	}
}

func TestObserverFreshestWins(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	src.rec = activeRecord(clock, time.Hour)
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.advance(time.Second)
	if _, next := o.Recompute(); !next.IsActive {
		t.Fatalf("recompute = %+v", next)
	}

	// A snapshot computed earlier must not displace a fresher one.
	o.replace(Locked(testNow))
	if snap := o.Snapshot(); !snap.IsActive {
		t.Fatal("stale snapshot displaced a fresher one")
	}
}

func TestObserverRecomputeCatchesClockExpiry(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	src.rec = activeRecord(clock, time.Minute)
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.advance(2 * time.Minute)
	prev, next := o.Recompute()
	if !prev.IsActive {
		t.Fatal("previous snapshot should have been active")
	}
	if next.IsActive {
		t.Fatal("recompute past expiry must deactivate")
	}
}

func TestObserverStopLocksAndUnsubscribes(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	src.rec = activeRecord(clock, time.Hour)
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	clock.advance(time.Second)
	o.Stop()
	o.Stop()
	if snap := o.Snapshot(); snap.IsActive {
		t.Fatal("Stop must serve locked")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.unsubbed != 1 {
		t.Fatalf("unsubscribed %d times, want 1", src.unsubbed)
	}
}

func TestObserverVerifyDetectsMutation(t *testing.T) {
	clock := &fakeClock{now: testNow}
	src := &fakeSource{}
	src.rec = activeRecord(clock, time.Hour)
	o := NewObserver(src, clock, nil)
	if err := o.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Verify(); err != nil {
		t.Fatalf("Verify on clean slot: %v", err)
	}

	o.mu.Lock()
	o.snap.Remaining += time.Hour
	o.mu.Unlock()
	if err := o.Verify(); !errors.Is(err, core.ErrTampered) {
		t.Fatalf("Verify = %v, want ErrTampered", err)
	}
}
