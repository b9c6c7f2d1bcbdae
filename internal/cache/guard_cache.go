package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GTDGit/catalog_api/internal/models"
)

const (
	sessionKeyPrefix = "admin_session:"
	lockoutKeyPrefix = "admin_lockout:"
)

// GuardCache stores admin session and lockout records in Redis as JSON
// documents. Redis TTLs only collect garbage; expiry is decided by the guard.
type GuardCache struct {
	redis *RedisClient
}

// NewGuardCache creates a new GuardCache.
func NewGuardCache(redis *RedisClient) *GuardCache {
	return &GuardCache{redis: redis}
}

// GetSession returns the session with id, or nil when there is none.
func (c *GuardCache) GetSession(ctx context.Context, id string) (*models.AdminSession, error) {
	var s models.AdminSession
	found, err := c.get(ctx, sessionKeyPrefix+id, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// SaveSession stores s for ttl.
func (c *GuardCache) SaveSession(ctx context.Context, s *models.AdminSession, ttl time.Duration) error {
	return c.set(ctx, sessionKeyPrefix+s.ID, s, ttl)
}

// DeleteSession removes the session with id.
func (c *GuardCache) DeleteSession(ctx context.Context, id string) error {
	return c.redis.Delete(ctx, sessionKeyPrefix+id)
}

// GetLockout returns the lockout record of client, or nil when there is none.
func (c *GuardCache) GetLockout(ctx context.Context, client string) (*models.LockoutState, error) {
	var st models.LockoutState
	found, err := c.get(ctx, lockoutKeyPrefix+client, &st)
	if err != nil || !found {
		return nil, err
	}
	return &st, nil
}

// SaveLockout stores the lockout record of client for ttl.
func (c *GuardCache) SaveLockout(ctx context.Context, client string, st *models.LockoutState, ttl time.Duration) error {
	return c.set(ctx, lockoutKeyPrefix+client, st, ttl)
}

// ResetLockout removes the lockout record of client.
func (c *GuardCache) ResetLockout(ctx context.Context, client string) error {
	return c.redis.Delete(ctx, lockoutKeyPrefix+client)
}

func (c *GuardCache) get(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if IsMiss(err) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// A corrupt record is treated as absent so the guard starts over.
		_ = c.redis.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (c *GuardCache) set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// MemoryGuardCache keeps guard records in process memory. It is used when
// Redis is disabled and in tests.
type MemoryGuardCache struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry[models.AdminSession]
	lockouts map[string]memoryEntry[models.LockoutState]
}

type memoryEntry[T any] struct {
	value    T
	expireAt time.Time
}

func (e memoryEntry[T]) expired() bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// NewMemoryGuardCache creates an empty MemoryGuardCache.
func NewMemoryGuardCache() *MemoryGuardCache {
	return &MemoryGuardCache{
		sessions: make(map[string]memoryEntry[models.AdminSession]),
		lockouts: make(map[string]memoryEntry[models.LockoutState]),
	}
}

func (c *MemoryGuardCache) GetSession(_ context.Context, id string) (*models.AdminSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.sessions[id]
	if !ok || e.expired() {
		delete(c.sessions, id)
		return nil, nil
	}
	s := e.value
	return &s, nil
}

func (c *MemoryGuardCache) SaveSession(_ context.Context, s *models.AdminSession, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = memoryEntry[models.AdminSession]{value: *s, expireAt: expiry(ttl)}
	return nil
}

func (c *MemoryGuardCache) DeleteSession(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
	return nil
}

func (c *MemoryGuardCache) GetLockout(_ context.Context, client string) (*models.LockoutState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lockouts[client]
	if !ok || e.expired() {
		delete(c.lockouts, client)
		return nil, nil
	}
	st := e.value
	return &st, nil
}

func (c *MemoryGuardCache) SaveLockout(_ context.Context, client string, st *models.LockoutState, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockouts[client] = memoryEntry[models.LockoutState]{value: *st, expireAt: expiry(ttl)}
	return nil
}

func (c *MemoryGuardCache) ResetLockout(_ context.Context, client string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lockouts, client)
	return nil
}
