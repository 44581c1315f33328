package redis

import (
	"Converge/internal/pkg/consts"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore 入站消息幂等标记。标记先占后写：处理失败时立即释放，
// 让渠道重投的同一条消息可以重新落地；处理成功的标记靠 TTL 过期。
type DedupStore interface {
	Acquire(ctx context.Context, messageKey string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, messageKey string) error
}

type dedupStoreImpl struct {
	client *redis.Client
}

func NewDedupStore(client *redis.Client) DedupStore {
	return &dedupStoreImpl{client: client}
}

func (s *dedupStoreImpl) Acquire(ctx context.Context, messageKey string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, consts.InboundDedupLock+messageKey, "1", ttl).Result()
}

func (s *dedupStoreImpl) Release(ctx context.Context, messageKey string) error {
	return s.client.Del(ctx, consts.InboundDedupLock+messageKey).Err()
}
