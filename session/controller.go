// Package session owns the live voice session lifecycle. At most one
// session is Active per process; the hard-lock path, explicit user
// stop, and device track termination all converge on the same
// idempotent teardown.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State is the session lifecycle state. Only the controller mutates
// it; everyone else reads IsLiveVoiceActive.
type State int

const (
	Idle State = iota
	RequestingPermission
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RequestingPermission:
		return "requesting_permission"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Authorizer re-checks the live entitlement. Start consults it once,
// and every audio cycle consults it again before producing output.
type Authorizer interface {
	Live() error
}

// Controller drives the live voice session.
type Controller struct {
	device AudioDevice
	pipe   Pipeline
	gate   Authorizer
	log    logrus.FieldLogger

	mu     sync.Mutex
	state  State
	stream MediaStream
	proc   *Processor

	// liveActive is the process-wide "live voice" indicator. Written
	// only here (start/teardown); exposed via IsLiveVoiceActive.
	liveActive atomic.Bool
}

// NewController wires the session controller to its collaborators.
func NewController(device AudioDevice, pipe Pipeline, gate Authorizer, log logrus.FieldLogger) *Controller {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Controller{device: device, pipe: pipe, gate: gate, log: log}
}

// UseVoice selects the voice profile for subsequent processing.
func (c *Controller) UseVoice(profile *VoiceProfile) {
	c.mu.Lock()
	c.proc = NewProcessor(profile)
	c.mu.Unlock()
}

// Start brings the session from Idle to Active: gate check, microphone
// permission, then graph wiring. A second Start while not Idle is a
// no-op. On any failure the session returns to Idle with no dangling
// device handle.
func (c *Controller) Start(ctx context.Context) error {
	// Gate check happens outside the lock: a denial fires the gate's
	// teardown hook, which takes the same lock via Stop.
	if err := c.gate.Live(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		c.log.Debug("live session already running")
		return nil
	}
	c.state = RequestingPermission
	c.mu.Unlock()

	stream, err := c.device.RequestMicrophone(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = Idle
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.state != RequestingPermission {
		// Torn down while waiting on the permission prompt.
		c.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	c.stream = stream
	c.mu.Unlock()

	if err := c.pipe.Connect(stream, c.processCycle); err != nil {
		c.mu.Lock()
		c.stream = nil
		c.state = Idle
		c.mu.Unlock()
		_ = stream.Close()
		return err
	}

	stream.OnEnded(c.HardStop)

	c.mu.Lock()
	if c.state != RequestingPermission {
		// Torn down while the graph was being wired; unwind instead of
		// going live after a stop already returned.
		c.stream = nil
		c.mu.Unlock()
		c.pipe.Disconnect()
		_ = stream.Close()
		return nil
	}
	c.state = Active
	c.liveActive.Store(true)
	c.mu.Unlock()
	c.log.Info("live voice session started")
	return nil
}

// Stop tears the session down. Safe from Idle (no-op), from the
// hard-lock path, from user action, and from the track-ended callback;
// all paths share this routine and resources are released exactly once.
func (c *Controller) Stop() {
	c.mu.Lock()
	switch c.state {
	case Idle, Stopping:
		c.mu.Unlock()
		return
	case RequestingPermission:
		// Abort the pending start; Start notices the state change and
		// releases the stream itself once the prompt resolves.
		c.state = Idle
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	c.liveActive.Store(false)
	c.pipe.Disconnect()
	if stream != nil {
		_ = stream.Close()
	}

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	c.log.Info("live voice session stopped")
}

// HardStop is the hard-lock entry point. Identical to Stop; the name
// marks the revocation path for the enforcement loop.
func (c *Controller) HardStop() { c.Stop() }

// IsLiveVoiceActive reports the process-wide live indicator.
func (c *Controller) IsLiveVoiceActive() bool { return c.liveActive.Load() }

// CurrentState returns the lifecycle state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// processCycle runs once per audio cycle. Entitlement is re-confirmed
// every cycle; a cycle landing after revocation emits silence instead
// of transformed audio. The gate's denial hook handles teardown.
func (c *Controller) processCycle(in, out []float32) {
	if !c.liveActive.Load() {
		Silence(out)
		return
	}
	if err := c.gate.Live(); err != nil {
		Silence(out)
		return
	}
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		proc = NewProcessor(nil)
	}
	proc.Process(in, out)
}
