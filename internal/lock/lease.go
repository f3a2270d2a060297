package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLeaseNotHeld 租约未持有 (已过期或被他人持有)
	ErrLeaseNotHeld = errors.New("lease not held")
	// ErrLeaseHeld 租约已被其他实例持有
	ErrLeaseHeld = errors.New("lease held by another instance")
)

// Lease 基于 Redis 的租约
//
// 值为随机 UUID, 释放与续期通过 Lua 比较持有者, 防止误删他人租约。
type Lease struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
}

// LeaseManager 租约管理器
type LeaseManager struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewLeaseManager 创建租约管理器
func NewLeaseManager(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *LeaseManager {
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &LeaseManager{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// NewLease 创建一个新租约
func (m *LeaseManager) NewLease(key string) *Lease {
	return &Lease{
		client: m.client,
		key:    m.keyPrefix + key,
		value:  uuid.New().String(),
		ttl:    m.ttl,
	}
}

// Acquire 尝试获取租约 (非阻塞)
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease failed: %w", err)
	}
	return ok, nil
}

// Release 释放租约 (原子操作, 只有持有者才能释放)
func (l *Lease) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("release lease failed: %w", err)
	}
	if result == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// Extend 续期 (原子操作, 只有持有者才能续期)
func (l *Lease) Extend(ctx context.Context, extension time.Duration) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.client, []string{l.key}, l.value, extension.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lease failed: %w", err)
	}
	if result == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// WithLease 在租约保护下执行函数
//
// 租约被占用时立即返回 ErrLeaseHeld, 由调用方决定跳过本轮。
func (m *LeaseManager) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease := m.NewLease(key)

	ok, err := lease.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLeaseHeld
	}

	defer func() {
		// 忽略释放错误 (租约可能已过期)
		_ = lease.Release(ctx)
	}()

	return fn(ctx)
}
