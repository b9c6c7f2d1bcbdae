package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/catalog_api/internal/config"
	"github.com/GTDGit/catalog_api/internal/models"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := NewRedisClient(&config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}

func TestGuardCacheSession(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	c := NewGuardCache(client)

	got, err := c.GetSession(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &models.AdminSession{ID: "sess-1", ClientKey: "10.0.0.1", Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), Valid: true}
	require.NoError(t, c.SaveSession(ctx, sess, 2*time.Hour))
	assert.True(t, mr.Exists("admin_session:sess-1"))
	assert.Equal(t, 2*time.Hour, mr.TTL("admin_session:sess-1"))

	got, err = c.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, c.DeleteSession(ctx, "sess-1"))
	got, err = c.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGuardCacheLockout(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	c := NewGuardCache(client)

	st := &models.LockoutState{Attempts: 2, Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, c.SaveLockout(ctx, "10.0.0.1", st, 15*time.Minute))

	got, err := c.GetLockout(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	mr.FastForward(16 * time.Minute)
	got, err = c.GetLockout(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.SaveLockout(ctx, "10.0.0.1", st, 15*time.Minute))
	require.NoError(t, c.ResetLockout(ctx, "10.0.0.1"))
	assert.False(t, mr.Exists("admin_lockout:10.0.0.1"))
}

func TestGuardCacheCorruptRecord(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	c := NewGuardCache(client)

	require.NoError(t, mr.Set("admin_lockout:10.0.0.1", "{not json"))
	got, err := c.GetLockout(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("admin_lockout:10.0.0.1"))
}

func TestGuardCacheRedisDown(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)
	c := NewGuardCache(client)
	mr.Close()

	_, err := c.GetSession(ctx, "sess-1")
	assert.Error(t, err)
	assert.Error(t, client.Ping(ctx))
}

func TestMemoryGuardCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryGuardCache()

	sess := &models.AdminSession{ID: "sess-1", ClientKey: "client", Timestamp: time.Now(), Valid: true}
	require.NoError(t, c.SaveSession(ctx, sess, time.Hour))
	got, err := c.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "client", got.ClientKey)

	// returned records are copies
	got.Valid = false
	again, _ := c.GetSession(ctx, "sess-1")
	assert.True(t, again.Valid)

	require.NoError(t, c.DeleteSession(ctx, "sess-1"))
	got, _ = c.GetSession(ctx, "sess-1")
	assert.Nil(t, got)

	require.NoError(t, c.SaveLockout(ctx, "client", &models.LockoutState{Attempts: 1}, time.Nanosecond))
	time.Sleep(time.Millisecond)
	st, err := c.GetLockout(ctx, "client")
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, c.SaveLockout(ctx, "client", &models.LockoutState{Attempts: 1}, 0))
	st, _ = c.GetLockout(ctx, "client")
	require.NotNil(t, st)
	require.NoError(t, c.ResetLockout(ctx, "client"))
	st, _ = c.GetLockout(ctx, "client")
	assert.Nil(t, st)
}
