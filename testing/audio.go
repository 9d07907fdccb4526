package testkit

import (
	"context"
	"sync"

	"github.com/freevoice-app/memberkit/core"
	"github.com/freevoice-app/memberkit/session"
)

// FakeStream is a microphone capture handle under test control.
type FakeStream struct {
	mu      sync.Mutex
	onEnded func()
	closed  int
}

func (s *FakeStream) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

// CloseCount reports how many times Close ran.
func (s *FakeStream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// End simulates the track terminating outside the app's control.
func (s *FakeStream) End() {
	s.mu.Lock()
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FakeDevice grants or denies microphone access.
type FakeDevice struct {
	mu       sync.Mutex
	deny     bool
	streams  []*FakeStream
	requests int
}

// Deny makes subsequent requests fail with core.ErrPermissionDenied.
func (d *FakeDevice) Deny(deny bool) {
	d.mu.Lock()
	d.deny = deny
	d.mu.Unlock()
}

func (d *FakeDevice) RequestMicrophone(context.Context) (session.MediaStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests++
	if d.deny {
		return nil, core.ErrPermissionDenied
	}
	s := &FakeStream{}
	d.streams = append(d.streams, s)
	return s, nil
}

// Requests reports how many times the microphone was requested.
func (d *FakeDevice) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

// LastStream returns the most recently granted stream, or nil.
func (d *FakeDevice) LastStream() *FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// FakePipeline records graph wiring and lets tests drive audio cycles.
type FakePipeline struct {
	mu          sync.Mutex
	process     session.ProcessFunc
	connected   bool
	disconnects int
	connectErr  error
}

// FailConnect makes the next Connect return err.
func (p *FakePipeline) FailConnect(err error) {
	p.mu.Lock()
	p.connectErr = err
	p.mu.Unlock()
}

func (p *FakePipeline) Connect(_ session.MediaStream, process session.ProcessFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectErr != nil {
		err := p.connectErr
		p.connectErr = nil
		return err
	}
	p.process = process
	p.connected = true
	return nil
}

func (p *FakePipeline) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.process = nil
	p.disconnects++
	p.mu.Unlock()
}

// Connected reports whether a graph is wired.
func (p *FakePipeline) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Disconnects reports how many times Disconnect ran.
func (p *FakePipeline) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// Cycle runs one audio cycle of n samples through the registered
// ProcessFunc and returns the output. in is all 1.0 so silencing is
// observable. Returns nil when no graph is wired.
func (p *FakePipeline) Cycle(n int) []float32 {
	p.mu.Lock()
	process := p.process
	p.mu.Unlock()
	if process == nil {
		return nil
	}
	in := make([]float32, n)
	for i := range in {
		in[i] = 1.0
	}
	out := make([]float32, n)
	process(in, out)
	return out
}
