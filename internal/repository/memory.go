package repository

import (
	"context"
	"sync"
	"time"

	"scams/internal/models"
)

type MemorySessionStore struct {
	sessions   sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	ttl        time.Duration
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl: ttl,
	}
}

type memorySession struct {
	session   *models.Session
	expiresAt time.Time
}

func (r *MemorySessionStore) GetSession(_ context.Context, token string) (*models.Session, error) {
	val, ok := r.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	entry := val.(memorySession)
	if time.Now().After(entry.expiresAt) {
		r.sessions.Delete(token)
		return nil, nil
	}
	return entry.session, nil
}

func (r *MemorySessionStore) SetSession(_ context.Context, session *models.Session) error {
	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(r.ttl)
	}
	r.sessions.Store(session.Token, memorySession{session: session, expiresAt: expiresAt})
	return nil
}

func (r *MemorySessionStore) DeleteSession(_ context.Context, token string) error {
	r.sessions.Delete(token)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
