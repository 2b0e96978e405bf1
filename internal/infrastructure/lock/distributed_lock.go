package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock Redis 分布式锁
//
// 加锁 SET key value NX EX，释放用 Lua 脚本校验持有者后删除，
// 避免误删别人的锁。
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewJoinLock 报名锁（按用户+场次维度）
// 防止同一用户的重复提交并发创建两条报名记录
func NewJoinLock(client *redis.Client, scope string, targetID, userID int64) *DistributedLock {
	key := fmt.Sprintf("%s:join:lock:%d:%d", scope, targetID, userID)
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}
