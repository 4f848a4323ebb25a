// Package lock provides the per-order single-flight guard used while an edit
// is derived and applied.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned when the key is already held
var ErrLocked = errors.New("lock is held")

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker acquires exclusive, expiring locks by key
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// OrderKey is the lock key guarding edits of one order
func OrderKey(orderID uint) string {
	return fmt.Sprintf("order-api:order:%d:edit", orderID)
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), now: time.Now}
}

// Acquire takes the lock or fails immediately with ErrLocked
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, ErrLocked
	}
	token := uuid.NewString()
	l.held[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if e, ok := l.held[key]; ok && e.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between API instances through Redis SET NX
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker connects to Redis and verifies the connection
func NewRedisLocker(ctx context.Context, addr, password string, db int) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisLocker{rdb: rdb}, nil
}

// Acquire takes the lock or fails immediately with ErrLocked
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}, nil
}

// Ping checks the Redis connection
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
