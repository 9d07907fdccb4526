// Package offline controls offline voice access: downloaded voice
// bundles are sealed at rest so a modified client cannot edit or
// replay them, and every read re-checks the offline gate. Expiry or
// tampering invalidates the whole vault.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/freevoice-app/memberkit/core"
)

// ErrNotFound is returned when no bundle exists for a voice id.
var ErrNotFound = errors.New("offline voice not found")

// Vault is the raw sealed-bundle storage. Backends: storage/redis and
// storage/memory.
type Vault interface {
	Put(ctx context.Context, voiceID string, sealed []byte) error
	Get(ctx context.Context, voiceID string) ([]byte, bool, error)
	Keys(ctx context.Context) ([]string, error)
	DeleteAll(ctx context.Context) error
}

// Authorizer is the offline feature gate.
type Authorizer interface {
	Offline() error
}

// Escalator receives tamper escalations. Wired to the enforcement
// loop's HardLock: tampering is a security event, not a denial.
type Escalator interface {
	HardLock(reason string)
}

// Bundle is the sealed payload envelope. The locked marker and voice
// id binding are verified on every load.
type Bundle struct {
	VoiceID     string `json:"voice_id"`
	Payload     []byte `json:"payload"`
	Locked      bool   `json:"locked"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Manager gates and seals offline voice bundles.
type Manager struct {
	vault    Vault
	gate     Authorizer
	escalate Escalator
	key      []byte
	clock    core.Clock
	log      logrus.FieldLogger
	locked   atomic.Bool
}

// NewManager builds an offline manager sealing bundles with the given
// 32-byte key.
func NewManager(vault Vault, gate Authorizer, key []byte, clock core.Clock, log logrus.FieldLogger) (*Manager, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("offline vault key must be %d bytes", chacha20poly1305.KeySize)
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Manager{vault: vault, gate: gate, key: key, clock: clock, log: log}, nil
}

// SetEscalator wires tamper escalation. Optional; without it tampering
// still invalidates the vault and locks offline access.
func (m *Manager) SetEscalator(e Escalator) { m.escalate = e }

// Save seals payload for voiceID and stores it.
func (m *Manager) Save(ctx context.Context, voiceID string, payload []byte) error {
	if err := m.authorize(); err != nil {
		return err
	}
	sealed, err := m.seal(Bundle{
		VoiceID:     voiceID,
		Payload:     payload,
		Locked:      true,
		CreatedAtMs: m.clock.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return m.vault.Put(ctx, voiceID, sealed)
}

// Load returns the payload for voiceID. A bundle that fails to open or
// whose envelope does not match the requested voice invalidates the
// entire vault and escalates.
func (m *Manager) Load(ctx context.Context, voiceID string) ([]byte, error) {
	if err := m.authorize(); err != nil {
		return nil, err
	}
	sealed, ok, err := m.vault.Get(ctx, voiceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	b, err := m.open(sealed)
	if err != nil || !b.Locked || b.VoiceID != voiceID {
		m.tampered(ctx, voiceID)
		return nil, core.ErrTampered
	}
	return b.Payload, nil
}

// Sweep verifies every stored bundle. Any bundle that fails integrity
// or shape checks invalidates the whole vault.
func (m *Manager) Sweep(ctx context.Context) error {
	keys, err := m.vault.Keys(ctx)
	if err != nil {
		return err
	}
	for _, voiceID := range keys {
		sealed, ok, err := m.vault.Get(ctx, voiceID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		b, err := m.open(sealed)
		if err != nil || !b.Locked || b.VoiceID != voiceID {
			m.tampered(ctx, voiceID)
			return core.ErrTampered
		}
	}
	return nil
}

// InvalidateAll discards every bundle and locks offline access until
// the next renewal. Called from the hard-lock path.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	m.locked.Store(true)
	return m.vault.DeleteAll(ctx)
}

// Unlock re-opens offline access after a renewal.
func (m *Manager) Unlock() { m.locked.Store(false) }

func (m *Manager) authorize() error {
	if err := m.gate.Offline(); err != nil {
		return err
	}
	if m.locked.Load() {
		return &core.AccessError{Feature: "offline_voice", Reason: core.ReasonMembershipExpired}
	}
	return nil
}

func (m *Manager) tampered(ctx context.Context, voiceID string) {
	m.log.WithField("voice_id", voiceID).Warn("offline bundle failed integrity check")
	if err := m.InvalidateAll(ctx); err != nil {
		m.log.WithError(err).Warn("vault invalidation failed")
	}
	if m.escalate != nil {
		m.escalate.HardLock("tampered")
	}
}
