// internal/service/order/domain/order.go
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ShippingAddress 是不可变的收货地址值对象，三个字段都是必填的。
type ShippingAddress struct {
	Address string
	Zip     string
	Country string
}

// OrderItem 是订单行项目。标题/SKU 是下单时刻的商品快照，
// 商品后续改名不影响历史订单。
type OrderItem struct {
	ProductID      string
	ProductTitle   string
	ProductSKU     string
	Quantity       int
	Price          float64
	TotalPrice     float64
	ShippingStatus string // 行级物流子状态，可选
	TrackingNumber string // 物流单号，可选
}

// Order 是订单聚合的根实体
type Order struct {
	ID              string
	CustomerEmail   string
	ShippingAddress ShippingAddress
	Items           []OrderItem
	Amount          float64
	ShippingCharges float64
	Seller          string
	Status          Status

	// TransactionReference / PaymentReference 是支付网关的关联字段，
	// 由支付流程一次性写入，不走状态机。
	TransactionReference string
	PaymentReference     string

	OrderNotes string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOrder 工厂函数: 校验并创建一个新的订单实体。
// 初始状态固定为 PENDING，标识由仓储层在持久化时分配。
func NewOrder(customerEmail string, address ShippingAddress, items []OrderItem, amount, shippingCharges float64, seller, notes string) (*Order, error) {
	if customerEmail == "" || seller == "" {
		return nil, errors.Wrap(ErrValidation, "customer email and seller are required")
	}
	if address.Address == "" || address.Zip == "" || address.Country == "" {
		return nil, errors.Wrap(ErrValidation, "shipping address requires address, zip and country")
	}
	if len(items) == 0 {
		return nil, errors.Wrap(ErrValidation, "order requires at least one item")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, errors.Wrapf(ErrValidation, "item %s quantity must be >= 1", item.ProductID)
		}
		if item.Price < 0 || item.TotalPrice < 0 {
			return nil, errors.Wrapf(ErrValidation, "item %s price must be >= 0", item.ProductID)
		}
	}
	if amount < 0 || shippingCharges < 0 {
		return nil, errors.Wrap(ErrValidation, "amount and shipping charges must be >= 0")
	}

	now := time.Now()
	return &Order{
		CustomerEmail:   strings.ToLower(customerEmail),
		ShippingAddress: address,
		Items:           items,
		Amount:          amount,
		ShippingCharges: shippingCharges,
		Seller:          seller,
		OrderNotes:      notes,
		Status:          StatusPending, // 初始状态
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MarkStatus 更新状态与修改时间。只应由状态机调用。
func (o *Order) MarkStatus(s Status) {
	o.Status = s
	o.UpdatedAt = time.Now()
}

// LineTotal 返回行项目合计加运费。
func (o *Order) LineTotal() float64 {
	var sum float64
	for _, item := range o.Items {
		sum += item.TotalPrice
	}
	return sum + o.ShippingCharges
}

// AmountConsistent 检查 Amount 是否与行项目合计一致。
// 历史数据并不保证这一点，所以只用于观测告警，不做硬校验。
func (o *Order) AmountConsistent() bool {
	return math.Abs(o.Amount-o.LineTotal()) < 0.01
}
