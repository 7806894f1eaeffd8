package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func roomLockKey(roomID int64, date string) string {
	return fmt.Sprintf("lock:room:%d:date:%s", roomID, date)
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRoomLocker struct {
	client *redis.Client
}

func NewRedisRoomLocker(client *redis.Client) *RedisRoomLocker {
	return &RedisRoomLocker{client: client}
}

func (l *RedisRoomLocker) Acquire(ctx context.Context, roomID int64, date string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, roomLockKey(roomID, date), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire room lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisRoomLocker) Release(ctx context.Context, roomID int64, date, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{roomLockKey(roomID, date)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release room lock: %w", err)
	}
	return nil
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryRoomLocker is the in-process locker used when Redis is not configured.
type MemoryRoomLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

func NewMemoryRoomLocker() *MemoryRoomLocker {
	return &MemoryRoomLocker{locks: make(map[string]memoryLock)}
}

func (l *MemoryRoomLocker) Acquire(_ context.Context, roomID int64, date string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := roomLockKey(roomID, date)
	now := time.Now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryRoomLocker) Release(_ context.Context, roomID int64, date, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := roomLockKey(roomID, date)
	if held, ok := l.locks[key]; ok && held.token == token {
		delete(l.locks, key)
	}
	return nil
}
