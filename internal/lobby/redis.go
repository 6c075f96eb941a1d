// internal/lobby/redis.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lobby:"

func lobbyKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// RedisStore persists lobbies as JSON values under "lobby:<id>". Conditional
// updates run inside a WATCH/MULTI transaction: the version check and the
// write commit together, and any concurrent write to the key aborts the
// transaction, which we surface as ErrConflict.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Create(ctx context.Context, l *Lobby) error {
	l.Version = 0
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal lobby %s: %w", l.ID, err)
	}
	if err := s.rdb.Set(ctx, lobbyKey(l.ID), data, RecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to create lobby %s: %w", l.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Lobby, error) {
	data, err := s.rdb.Get(ctx, lobbyKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lobby %s: %w", id, err)
	}
	return Decode(data)
}

func (s *RedisStore) List(ctx context.Context, filter Status) ([]*Lobby, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lobby keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lobbies: %w", err)
	}

	lobbies := make([]*Lobby, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		l, err := Decode([]byte(str))
		if err != nil {
			return nil, err
		}
		if filter != "" && l.Status != filter {
			continue
		}
		lobbies = append(lobbies, l)
	}
	return lobbies, nil
}

func (s *RedisStore) ConditionalUpdate(ctx context.Context, id uuid.UUID, expectedVersion uint64, next *Lobby) error {
	key := lobbyKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read lobby %s: %w", id, err)
		}
		cur, err := Decode(data)
		if err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			next.Version = expectedVersion + 1
			buf, merr := json.Marshal(next)
			if merr != nil {
				return fmt.Errorf("failed to marshal lobby %s: %w", id, merr)
			}
			pipe.Set(ctx, key, buf, RecordTTL)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Key changed between WATCH and EXEC.
		return ErrConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, lobbyKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete lobby %s: %w", id, err)
	}
	return nil
}
