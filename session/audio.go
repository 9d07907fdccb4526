package session

import "context"

// The audio collaborator: a host subsystem that grants microphone
// access and drives a capture -> process -> playback graph, invoking
// the registered ProcessFunc at fixed small intervals (~20-100ms of
// audio per cycle).

// ProcessFunc fills out from in for one audio cycle. len(out) equals
// len(in). It runs on the audio callback path and must not block.
type ProcessFunc func(in, out []float32)

// MediaStream is an exclusively owned microphone capture handle.
type MediaStream interface {
	// OnEnded registers fn to run when the underlying track terminates
	// outside our control (device unplugged, OS revocation).
	OnEnded(fn func())
	// Close stops the tracks and releases the device. Implementations
	// must tolerate repeated calls.
	Close() error
}

// AudioDevice requests microphone access. A refusal is reported as
// core.ErrPermissionDenied (possibly wrapped).
type AudioDevice interface {
	RequestMicrophone(ctx context.Context) (MediaStream, error)
}

// Pipeline connects a stream through a processing stage to the output.
// Disconnect must be callable from within the ProcessFunc it drives.
type Pipeline interface {
	Connect(stream MediaStream, process ProcessFunc) error
	Disconnect()
}
