package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"hermes/pkg/errors"
)

const keyPrefix = "dedupe:fp:"

// RedisKeyStore is a TTL-backed keystore shared between workers. Add uses
// SETNX so two workers racing on the same fingerprint both end up with a
// single marked key.
type RedisKeyStore struct {
	client *redis.Client
}

var _ KeyStore = (*RedisKeyStore)(nil)

// NewRedisKeyStore creates a keystore on an existing Redis client.
func NewRedisKeyStore(client *redis.Client) *RedisKeyStore {
	return &RedisKeyStore{client: client}
}

func (s *RedisKeyStore) Has(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, errors.Wrap(err, "keystore exists check")
	}
	return count > 0, nil
}

func (s *RedisKeyStore) Add(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.SetNX(ctx, keyPrefix+key, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "keystore setnx")
	}
	return nil
}
