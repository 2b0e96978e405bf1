package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// JoinLocker 报名场景的锁包装，拿不到锁直接快速失败，
// 让客户端重试而不是在服务端排队。
type JoinLocker struct {
	client *redis.Client
}

func NewJoinLocker(client *redis.Client) *JoinLocker {
	return &JoinLocker{client: client}
}

func (l *JoinLocker) WithJoinLock(ctx context.Context, scope string, targetID, userID int64, fn func() error) error {
	dl := NewJoinLock(l.client, scope, targetID, userID)
	if err := dl.Lock(ctx, 100*time.Millisecond, 3); err != nil {
		return err
	}
	defer dl.Unlock(ctx)
	return fn()
}
