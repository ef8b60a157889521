// Package cache is the small key-value surface used for attempt records,
// cached quiz payloads and composer drafts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("cache: key not found")

// KV stores opaque values under string keys. A ttl of zero means no expiry.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key into dst.
func GetJSON(ctx context.Context, kv KV, key string, dst interface{}) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, raw, ttl)
}

type RedisKV struct {
	Redis *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{Redis: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Redis.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.Redis.Del(ctx, key).Err()
}

type memItem struct {
	value    []byte
	expireAt time.Time
}

// MemoryKV is an in-process KV used when Redis is not configured and in tests.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !item.expireAt.IsZero() && !m.now().Before(item.expireAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expireAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
