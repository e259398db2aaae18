package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "bot:state:"

// NewRedisClient creates a redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redisv9.Client, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}

	return client, nil
}

// RedisStore persists state documents in redis. Documents expire after TTL
// so abandoned conversations do not accumulate.
type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store. A non-positive TTL defaults
// to 24 hours.
func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Read(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if len(keys) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = stateKeyPrefix + key
	}

	values, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read state failed: %w", err)
	}

	docs := make(map[string]json.RawMessage, len(keys))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // key missing
		}
		docs[keys[i]] = json.RawMessage(raw)
	}
	return docs, nil
}

func (s *RedisStore) Write(ctx context.Context, changes map[string]json.RawMessage) error {
	pipe := s.client.Pipeline()
	for key, raw := range changes {
		pipe.Set(ctx, stateKeyPrefix+key, []byte(raw), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write state failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = stateKeyPrefix + key
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis delete state failed: %w", err)
	}
	return nil
}
