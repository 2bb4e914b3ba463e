// internal/service/order/domain/repository.go
package domain

import "context"

// GatewayFieldsPatch 是支付网关关联字段的部分更新。
// nil 字段保持原值。此更新刻意绕过状态机：关联引用是网关元数据，不是业务状态。
type GatewayFieldsPatch struct {
	TransactionReference *string
	PaymentReference     *string
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 持久化一个新订单并分配标识。
	Create(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找订单，不存在返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByPaymentReference 根据支付引用查找订单，不存在返回 ErrOrderNotFound。
	FindByPaymentReference(ctx context.Context, ref string) (*Order, error)

	// FindBySeller 返回某个卖家的全部订单，新订单在前。
	FindBySeller(ctx context.Context, sellerID string) ([]*Order, error)

	// FindAll 返回全部订单，新订单在前。
	FindAll(ctx context.Context) ([]*Order, error)

	// UpdateStatus 以 CAS 方式更新状态: 仅当当前状态仍为 from 时写入 to。
	// 订单不存在返回 ErrOrderNotFound；当前状态已被并发修改返回 ErrConflict。
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	// PatchGatewayFields 部分更新网关关联字段，不触碰 status。
	// payment_reference 全局唯一，冲突时返回 ErrDuplicateReference。
	PatchGatewayFields(ctx context.Context, id string, patch GatewayFieldsPatch) error
}
