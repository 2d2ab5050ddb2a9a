package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore holds serialized user state for a bounded time.
type SnapshotStore interface {
	Put(ctx context.Context, userID string, data []byte, ttl time.Duration) error
	// Get returns (nil, false, nil) for a missing or expired entry.
	Get(ctx context.Context, userID string) ([]byte, bool, error)
	Delete(ctx context.Context, userID string) error
	// EvictExpired drops expired entries and returns how many were removed.
	EvictExpired(ctx context.Context) (int, error)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySnapshots is the in-process snapshot cache.
type MemorySnapshots struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySnapshots(now func() time.Time) *MemorySnapshots {
	if now == nil {
		now = time.Now
	}
	return &MemorySnapshots{entries: make(map[string]memoryEntry), now: now}
}

func (m *MemorySnapshots) Put(_ context.Context, userID string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySnapshots) Get(_ context.Context, userID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.data, true, nil
}

func (m *MemorySnapshots) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

func (m *MemorySnapshots) EvictExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemorySnapshots) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

const redisKeyPrefix = "finscholars:user:"

// RedisSnapshots keeps snapshots in Redis so they survive restarts and are shared
// between instances. Redis expires keys itself.
type RedisSnapshots struct {
	client *redis.Client
}

func NewRedisSnapshots(client *redis.Client) *RedisSnapshots {
	return &RedisSnapshots{client: client}
}

func (r *RedisSnapshots) Put(ctx context.Context, userID string, data []byte, ttl time.Duration) error {
	return r.client.Set(ctx, redisKeyPrefix+userID, data, ttl).Err()
}

func (r *RedisSnapshots) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, redisKeyPrefix+userID).Err()
}

func (r *RedisSnapshots) EvictExpired(context.Context) (int, error) {
	return 0, nil
}
