package memorystore

import (
	"context"
	"sync"
)

// VoiceVault is an in-memory offline.Vault for tests and development.
type VoiceVault struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewVoiceVault creates an empty in-memory vault.
func NewVoiceVault() *VoiceVault {
	return &VoiceVault{data: make(map[string][]byte)}
}

func (v *VoiceVault) Put(ctx context.Context, voiceID string, sealed []byte) error {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := make([]byte, len(sealed))
	copy(cp, sealed)
	v.data[voiceID] = cp
	return nil
}

func (v *VoiceVault) Get(ctx context.Context, voiceID string) ([]byte, bool, error) {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.data[voiceID]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true, nil
}

func (v *VoiceVault) Keys(ctx context.Context) ([]string, error) {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.data))
	for k := range v.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (v *VoiceVault) DeleteAll(ctx context.Context) error {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = make(map[string][]byte)
	return nil
}

// Corrupt flips a byte of a stored bundle. Test helper for the tamper
// detection path.
func (v *VoiceVault) Corrupt(voiceID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.data[voiceID]; ok && len(b) > 0 {
		b[len(b)/2] ^= 0xff
	}
}
