// internal/service/order/domain/port/pending.go
package port

import (
	"context"
	"time"
)

// PendingPaymentEvents 缓存"先于本地提交到达"的支付回调结果。
// 回调与支付发起之间没有全局顺序：provider 的回调可能在本地还没把
// payment_reference 写进订单之前就到达。此时结果被暂存，
// 由支付发起流程在持久化引用之后取走并应用。
type PendingPaymentEvents interface {
	// Stash 按支付引用暂存一个回调状态，到期自动丢弃。
	Stash(ctx context.Context, paymentReference, paymentStatus string, ttl time.Duration) error

	// Take 取走并删除暂存的回调状态。第二个返回值表示是否存在。
	Take(ctx context.Context, paymentReference string) (string, bool, error)
}
