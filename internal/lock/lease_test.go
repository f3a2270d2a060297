package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, rdb
}

// TestLease_AcquireRelease 测试租约获取与释放
func TestLease_AcquireRelease(t *testing.T) {
	_, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 10*time.Second)

	lease := manager.NewLease("reconciler")

	ok, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一 key 的第二把租约获取失败
	other := manager.NewLease("reconciler")
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// 持有者释放后可再次获取
	require.NoError(t, lease.Release(context.Background()))
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLease_ReleaseNotHeld 测试非持有者释放
func TestLease_ReleaseNotHeld(t *testing.T) {
	_, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 10*time.Second)

	holder := manager.NewLease("reconciler")
	ok, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// 另一个实例的租约值不同, 释放应失败且不影响持有者
	impostor := manager.NewLease("reconciler")
	err = impostor.Release(context.Background())
	assert.ErrorIs(t, err, ErrLeaseNotHeld)

	ok, err = manager.NewLease("reconciler").Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestLease_Expiry 测试租约过期
func TestLease_Expiry(t *testing.T) {
	mr, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 5*time.Second)

	lease := manager.NewLease("reconciler")
	ok, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// 过期后任何实例都能重新获取
	mr.FastForward(6 * time.Second)

	other := manager.NewLease("reconciler")
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// 原持有者释放过期租约应失败
	err = lease.Release(context.Background())
	assert.ErrorIs(t, err, ErrLeaseNotHeld)
}

// TestLease_Extend 测试租约续期
func TestLease_Extend(t *testing.T) {
	mr, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 5*time.Second)

	lease := manager.NewLease("reconciler")
	ok, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Extend(context.Background(), 30*time.Second))

	// 原 TTL 过去后仍然持有
	mr.FastForward(6 * time.Second)
	other := manager.NewLease("reconciler")
	ok, err = other.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestLeaseManager_WithLease 测试租约保护执行
func TestLeaseManager_WithLease(t *testing.T) {
	_, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 10*time.Second)

	t.Run("executes and releases", func(t *testing.T) {
		executed := false
		err := manager.WithLease(context.Background(), "sync", func(ctx context.Context) error {
			executed = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, executed)

		// 执行完毕后租约已释放
		ok, err := manager.NewLease("sync").Acquire(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("contended lease skips", func(t *testing.T) {
		holder := manager.NewLease("sync-busy")
		ok, err := holder.Acquire(context.Background())
		require.NoError(t, err)
		require.True(t, ok)

		err = manager.WithLease(context.Background(), "sync-busy", func(ctx context.Context) error {
			t.Fatal("must not run while lease is held")
			return nil
		})
		assert.ErrorIs(t, err, ErrLeaseHeld)
	})

	t.Run("propagates fn error", func(t *testing.T) {
		wantErr := errors.New("boom")
		err := manager.WithLease(context.Background(), "sync-err", func(ctx context.Context) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}

// TestNewLeaseManager_DefaultTTL 测试默认 TTL
func TestNewLeaseManager_DefaultTTL(t *testing.T) {
	_, rdb := setupRedis(t)
	manager := NewLeaseManager(rdb, "venu:lease:", 0)
	assert.Equal(t, 60*time.Second, manager.ttl)
}
