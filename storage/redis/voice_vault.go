package redisstore

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// VoiceVault stores sealed offline voice bundles in Redis.
type VoiceVault struct {
	rdb   *redis.Client
	keyNS string
}

// NewVoiceVault creates a Redis-backed vault under the given key
// prefix.
func NewVoiceVault(rdb *redis.Client, keyPrefix string) *VoiceVault {
	if keyPrefix == "" {
		keyPrefix = "voice:offline:"
	}
	return &VoiceVault{rdb: rdb, keyNS: keyPrefix}
}

func (v *VoiceVault) key(voiceID string) string { return v.keyNS + voiceID }

// Put stores a sealed bundle. Bundles carry no TTL: offline access is
// revoked by deletion, not expiry.
func (v *VoiceVault) Put(ctx context.Context, voiceID string, sealed []byte) error {
	return v.rdb.Set(ctx, v.key(voiceID), sealed, 0).Err()
}

func (v *VoiceVault) Get(ctx context.Context, voiceID string) ([]byte, bool, error) {
	b, err := v.rdb.Get(ctx, v.key(voiceID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (v *VoiceVault) Keys(ctx context.Context) ([]string, error) {
	var out []string
	iter := v.rdb.Scan(ctx, 0, v.keyNS+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), v.keyNS))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *VoiceVault) DeleteAll(ctx context.Context) error {
	keys, err := v.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = v.key(k)
	}
	return v.rdb.Del(ctx, full...).Err()
}
