// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	CustomerEmail string `gorm:"size:255;index;not null"`

	// 收货地址值对象，平铺为列
	AddressLine    string `gorm:"size:255;not null"`
	AddressZip     string `gorm:"size:32;not null"`
	AddressCountry string `gorm:"size:64;not null"`

	Amount          float64 `gorm:"type:decimal(10,2);not null"`
	ShippingCharges float64 `gorm:"type:decimal(10,2);not null"`
	Seller          string  `gorm:"size:36;index;not null"`
	Status          string  `gorm:"size:16;index;not null"`

	// 支付网关关联字段。payment_reference 是回调方向的唯一关联键，全局唯一。
	TransactionReference sql.NullString `gorm:"size:64"`
	PaymentReference     sql.NullString `gorm:"size:64;uniqueIndex"`

	OrderNotes string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID             uint   `gorm:"primaryKey"`
	OrderID        string `gorm:"size:36;index;not null"`
	ProductID      string `gorm:"size:36;index;not null"`
	ProductTitle   string `gorm:"size:255"`
	ProductSKU     string `gorm:"size:64"`
	Quantity       int    `gorm:"not null"`
	Price          float64 `gorm:"type:decimal(10,2);not null"`
	TotalPrice     float64 `gorm:"type:decimal(10,2);not null"`
	ShippingStatus string  `gorm:"size:32"`
	TrackingNumber string  `gorm:"size:64"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}
