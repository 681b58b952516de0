package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "upload_location_"

// RedisStore keeps sessions in Redis so every relay replica resolves the
// same tokens. Expiry is delegated to the key TTL.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, token, location string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKey(token), location, ttl).Err(); err != nil {
		return fmt.Errorf("store upload session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, bool, error) {
	location, err := s.client.Get(ctx, redisKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load upload session: %w", err)
	}
	return location, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}
