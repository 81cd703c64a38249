package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldIntent   = "intent"
	fieldIntentAt = "intent_at"
	fieldNegative = "negative"

	scanBatch = 100
)

// RedisStore keeps each chat's State in a hash under keyPrefix+chatID.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, keyPrefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, keyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(chatID string) string {
	return r.keyPrefix + chatID
}

func (r *RedisStore) Get(ctx context.Context, chatID string) (State, error) {
	fields, err := r.client.HGetAll(ctx, r.key(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to get session %s: %w", chatID, err)
	}
	return decodeState(fields)
}

func (r *RedisStore) Put(ctx context.Context, chatID string, state State) error {
	var intentAt int64
	if !state.LastIntentAt.IsZero() {
		intentAt = state.LastIntentAt.UnixMilli()
	}
	err := r.client.HSet(ctx, r.key(chatID),
		fieldIntent, state.LastIntent,
		fieldIntentAt, intentAt,
		fieldNegative, state.NegativeCount,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to put session %s: %w", chatID, err)
	}
	return nil
}

func (r *RedisStore) Flush(ctx context.Context) (int, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to flush sessions: %w", err)
	}
	return int(deleted), nil
}

func (r *RedisStore) Snapshot(ctx context.Context) (map[string]State, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]State, len(keys))
	for _, key := range keys {
		chatID := strings.TrimPrefix(key, r.keyPrefix)
		state, err := r.Get(ctx, chatID)
		if err != nil {
			return nil, err
		}
		out[chatID] = state
	}
	return out, nil
}

func (r *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return keys, nil
}

func decodeState(fields map[string]string) (State, error) {
	var state State
	if len(fields) == 0 {
		return state, nil
	}

	state.LastIntent = fields[fieldIntent]

	if raw := fields[fieldIntentAt]; raw != "" && raw != "0" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return State{}, fmt.Errorf("invalid %s field %q: %w", fieldIntentAt, raw, err)
		}
		state.LastIntentAt = time.UnixMilli(ms).UTC()
	}

	if raw := fields[fieldNegative]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return State{}, fmt.Errorf("invalid %s field %q: %w", fieldNegative, raw, err)
		}
		state.NegativeCount = n
	}

	return state, nil
}
