package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used by RedisStore.
const DefaultRedisPrefix = "fragments:"

// maxTxRetries bounds optimistic transaction retries on WATCH conflicts.
const maxTxRetries = 16

// RedisStore keeps one unit per fragment id under "<prefix><id>".
//
// A Save returns once the server has acknowledged the write. Whether that
// write survives a server crash depends on the server's persistence
// settings: only AOF with "appendfsync always" makes it durable on
// return. With "everysec" up to a second of saves can be lost, with RDB
// snapshots alone everything since the last snapshot.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save implements Store. The read-modify-write runs in a WATCH/MULTI
// transaction and is retried when another writer touches the key.
// Durability on return follows the server's appendfsync setting.
func (s *RedisStore) Save(ctx context.Context, id, variant, content string) error {
	if err := checkArgs(id, variant); err != nil {
		return opError("save", id, err)
	}
	key := s.key(id)

	txf := func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			existing = nil
		} else if err != nil {
			return err
		}

		unit, err := setVersion(existing, id, variant, content)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, unit, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return opError("save", id, err)
	}
	return opError("save", id, fmt.Errorf("gave up after %d conflicting writes", maxTxRetries))
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id, variant string) (string, bool, error) {
	if err := checkArgs(id, variant); err != nil {
		return "", false, opError("load", id, err)
	}
	unit, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, opError("load", id, err)
	}
	content, ok, err := getVersion(unit, variant)
	return content, ok, opError("load", id, err)
}

// Forget implements Store.
func (s *RedisStore) Forget(ctx context.Context, id string) error {
	if id == "" {
		return opError("forget", id, ErrInvalidID)
	}
	return opError("forget", id, s.client.Del(ctx, s.key(id)).Err())
}

// Record implements Store.
func (s *RedisStore) Record(ctx context.Context, id string) (Record, bool, error) {
	if id == "" {
		return Record{}, false, opError("record", id, ErrInvalidID)
	}
	unit, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, opError("record", id, err)
	}
	rec, err := decodeRecord(unit, id)
	if err != nil {
		return Record{}, false, opError("record", id, err)
	}
	return rec, true, nil
}

// IDs implements Store using SCAN so large keyspaces are not blocked.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", s.prefix, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
