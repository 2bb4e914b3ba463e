// internal/service/order/infrastructure/adapter/pending_event_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"bazaar/internal/pkg/redis"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// PendingEventRedisAdapter 是 port.PendingPaymentEvents 接口的 Redis 实现。
// 回调先于本地支付发起提交到达时，结果按支付引用暂存在这里，
// TTL 到期自动清理，避免永远等不到订单的脏数据堆积。
type PendingEventRedisAdapter struct {
	redisClient *redis.Client
}

// NewPendingEventRedisAdapter 创建一个新的暂存适配器实例。
func NewPendingEventRedisAdapter(redisClient *redis.Client) *PendingEventRedisAdapter {
	return &PendingEventRedisAdapter{redisClient: redisClient}
}

func pendingKey(paymentReference string) string {
	return fmt.Sprintf("payment:pending:{%s}", paymentReference)
}

// Stash 按支付引用暂存一个回调状态。
// 同一引用的重复投递直接覆盖：provider 对一笔支付只会有一个最终结果。
func (a *PendingEventRedisAdapter) Stash(ctx context.Context, paymentReference, paymentStatus string, ttl time.Duration) error {
	err := a.redisClient.GetClient().Set(ctx, pendingKey(paymentReference), paymentStatus, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to stash pending payment event")
	}
	return nil
}

// Take 原子地取走并删除暂存的回调状态。
func (a *PendingEventRedisAdapter) Take(ctx context.Context, paymentReference string) (string, bool, error) {
	val, err := a.redisClient.GetClient().GetDel(ctx, pendingKey(paymentReference)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "failed to take pending payment event")
	}
	return val, true, nil
}
