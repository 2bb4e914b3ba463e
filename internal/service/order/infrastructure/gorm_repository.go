// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"bazaar/internal/service/order/domain"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 建表。生产环境通常用迁移脚本，这里方便本地启动。
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderItemModel{})
}

// Create 持久化一个新订单，标识在这里分配。
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = domain.StatusPending
	}
	model := ToOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "failed to create order")
	}
	return nil
}

// FindByID 根据 ID 查找一个订单聚合。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "failed to find order")
	}
	return ToDomainOrder(&model), nil
}

// FindByPaymentReference 根据支付引用查找订单。
func (r *GormOrderRepository) FindByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("payment_reference = ?", ref).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "failed to find order by payment reference")
	}
	return ToDomainOrder(&model), nil
}

// FindBySeller 返回某个卖家的全部订单，新订单在前。
func (r *GormOrderRepository) FindBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("seller = ?", sellerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders by seller")
	}
	return toDomainOrders(models), nil
}

// FindAll 返回全部订单，新订单在前。
func (r *GormOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return toDomainOrders(models), nil
}

// UpdateStatus 以 CAS 方式推进状态：
// 只有当前状态仍等于 from 时才写入，避免状态更新与并发写互相覆盖。
// 状态机不允许自环流转，所以 RowsAffected == 0 一定意味着
// "订单不存在" 或 "状态已被别人改走"，而不会是 "值没变化"。
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	tx := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to update order status")
	}
	if tx.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// PatchGatewayFields 部分更新支付网关关联字段，刻意绕过状态机。
func (r *GormOrderRepository) PatchGatewayFields(ctx context.Context, id string, patch domain.GatewayFieldsPatch) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.TransactionReference != nil {
		updates["transaction_reference"] = *patch.TransactionReference
	}
	if patch.PaymentReference != nil {
		updates["payment_reference"] = *patch.PaymentReference
	}

	tx := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		if isDuplicateKey(tx.Error) {
			return errors.Wrapf(domain.ErrDuplicateReference, "order %s", id)
		}
		return errors.Wrap(tx.Error, "failed to patch gateway fields")
	}
	if tx.RowsAffected == 0 {
		// MySQL 只统计实际发生变化的行；值相同的重复 patch 也会落到这里，
		// 用存在性检查把它与"订单不存在"区分开。
		var count int64
		if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to check order existence")
		}
		if count == 0 {
			return domain.ErrOrderNotFound
		}
	}
	return nil
}

// missOrConflict 区分 CAS 零更新的两种原因。
func (r *GormOrderRepository) missOrConflict(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrap(err, "failed to check order existence")
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrConflict
}

func toDomainOrders(models []OrderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, ToDomainOrder(&models[i]))
	}
	return out
}

// isDuplicateKey 识别 MySQL 唯一键冲突 (errno 1062)。
func isDuplicateKey(err error) bool {
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
