package merging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/redis"
)

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), redis.Config{Addr: server.Addr()}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(redis.NewLocker(client, "clover:"), time.Minute), server
}

func TestRedisLocker_LockClients(t *testing.T) {
	locker, server := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := locker.LockClients(ctx, tenant, []string{"s", "d1"})
	require.NoError(t, err)
	assert.True(t, server.Exists("clover:merge:tenant-1:s"))
	assert.True(t, server.Exists("clover:merge:tenant-1:d1"))

	_, err = locker.LockClients(ctx, tenant, []string{"d1", "d0"})
	assert.ErrorIs(t, err, ErrMergeInProgress)
	assert.False(t, server.Exists("clover:merge:tenant-1:d0"), "partial locks are released")

	other, err := locker.LockClients(ctx, "tenant-2", []string{"d1"})
	require.NoError(t, err, "locks are scoped per tenant")
	other(ctx)

	unlock(ctx)
	assert.False(t, server.Exists("clover:merge:tenant-1:s"))

	again, err := locker.LockClients(ctx, tenant, []string{"d1", "d0"})
	require.NoError(t, err)
	again(ctx)
}

func TestCoordinator_WithRedisLocker(t *testing.T) {
	locker, server := newRedisLocker(t)
	store, survivor, duplicates := mergeFixture()
	coordinator := NewCoordinator(store, testLogger(), WithLocker(locker))

	held, err := locker.LockClients(context.Background(), tenant, []string{"d2"})
	require.NoError(t, err)

	busy := coordinator.ExecuteMerge(context.Background(), tenant, survivor, duplicates, nil)
	assert.False(t, busy.Success)
	assert.Equal(t, "Mesclagem em andamento para estes clientes", busy.Error)

	held(context.Background())
	result := coordinator.ExecuteMerge(context.Background(), tenant, survivor, duplicates, nil)
	require.True(t, result.Success, result.Error)
	assert.Empty(t, server.Keys())
}
