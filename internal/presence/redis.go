// internal/presence/redis.go
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

func recordKey(identity string) string {
	return keyPrefix + identity
}

// RedisStore persists presence records as JSON values under
// "presence:<identity>", using Redis key expiry for the TTL semantics.
// Single-key SETs are atomic at the store level, which is all the presence
// registry needs.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Upsert(ctx context.Context, rec Record, ttl time.Duration) error {
	if rec.Identity == "" {
		return fmt.Errorf("presence record has no identity")
	}
	if rec.LastActive.IsZero() {
		rec.LastActive = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	// SET with expiration 0 persists the key, which is exactly TTLNone.
	if err := s.rdb.Set(ctx, recordKey(rec.Identity), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write presence record for %s: %w", rec.Identity, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identity string) (*Record, error) {
	data, err := s.rdb.Get(ctx, recordKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presence record for %s: %w", identity, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt presence record for %s: %w", identity, err)
	}
	return &rec, nil
}

func (s *RedisStore) SetTTL(ctx context.Context, identity string, ttl time.Duration) error {
	key := recordKey(identity)
	var err error
	if ttl == TTLNone {
		err = s.rdb.Persist(ctx, key).Err()
	} else {
		// EXPIRE on a missing key is a no-op; it reports false, which we ignore.
		err = s.rdb.Expire(ctx, key, ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set presence ttl for %s: %w", identity, err)
	}
	return nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]Record, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence records: %w", err)
	}

	records := make([]Record, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("corrupt presence record at %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Remove(ctx context.Context, identity string) error {
	if err := s.rdb.Del(ctx, recordKey(identity)).Err(); err != nil {
		return fmt.Errorf("failed to remove presence record for %s: %w", identity, err)
	}
	return nil
}
