package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupLockout(t *testing.T) (*Lockout, *redis.Client) {
	t.Helper()

	if testing.Short() {
		t.Skip("container test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	rc, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := rc.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	uri, err := rc.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	return NewLockout(client, instrument.NewNoop()), client
}

func TestLockout(t *testing.T) {
	l, client := setupLockout(t)
	ctx := context.Background()

	locked, err := l.IsLocked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.Lock(ctx, "alice", time.Minute))

	locked, err = l.IsLocked(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, locked)

	ttl, err := client.TTL(ctx, "bank:lockout:alice").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	locked, err = l.IsLocked(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, l.Clear(ctx, "alice"))
	require.NoError(t, l.Clear(ctx, "alice"))

	locked, err = l.IsLocked(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, locked)

	assert.ErrorIs(t, l.Lock(ctx, "alice", 0), ErrInvalidTTL)
}

func TestLockout_Expires(t *testing.T) {
	l, _ := setupLockout(t)
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx, "alice", time.Second))
	assert.Eventually(t, func() bool {
		locked, err := l.IsLocked(ctx, "alice")
		return err == nil && !locked
	}, 5*time.Second, 100*time.Millisecond)
}
