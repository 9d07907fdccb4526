package core

import (
	"errors"
	"fmt"
)

// DenyReason codes a terminal access denial so a presentation layer can
// render it ("membership expired", "feature disabled") without parsing
// error strings.
type DenyReason string

const (
	ReasonMembershipExpired DenyReason = "membership_expired"
	ReasonFeatureDisabled   DenyReason = "feature_disabled"
)

var (
	// ErrUnauthenticated is returned when a gated call is made with no
	// signed-in user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied is returned when the audio device refuses
	// microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrInvalidRecord marks a malformed subscription record. The
	// resolver treats such records as locked rather than failing, so
	// this surfaces only from write paths.
	ErrInvalidRecord = errors.New("invalid subscription record")

	// ErrStoreUnavailable marks a transient profile-store failure.
	// Entitlement stays locked until a successful read occurs.
	ErrStoreUnavailable = errors.New("profile store unavailable")

	// ErrTampered marks detected tampering with cached membership
	// state. It escalates straight to hard-lock, never to a retry.
	ErrTampered = errors.New("membership state tampered")
)

// AccessError is a reason-coded denial from a feature gate.
type AccessError struct {
	Feature string
	Reason  DenyReason
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access denied for %s: %s", e.Feature, e.Reason)
}

// Denied reports whether err is an AccessError, returning its reason.
func Denied(err error) (DenyReason, bool) {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return "", false
}
