// internal/service/order/application/dto.go
package application

import (
	"time"

	"bazaar/internal/service/order/domain"
)

// ShippingAddressDTO 与外部 API 的收货地址字段对应。
type ShippingAddressDTO struct {
	Address string `json:"address"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// OrderItemDTO 是创建订单时的行项目载体。
type OrderItemDTO struct {
	ProductID      string  `json:"product_id"`
	ProductTitle   string  `json:"product_title"`
	ProductSKU     string  `json:"product_sku"`
	Quantity       int     `json:"quantity"`
	Price          float64 `json:"price"`
	TotalPrice     float64 `json:"total_price"`
	ShippingStatus string  `json:"shipping_status,omitempty"`
	TrackingNumber string  `json:"shipping_tracking_number,omitempty"`
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress ShippingAddressDTO `json:"shipping_address"`
	OrderItems      []OrderItemDTO     `json:"order_items"`
	Amount          float64            `json:"amount"`
	ShippingCharges float64            `json:"shipping_charges"`
	Seller          string             `json:"seller"`
	OrderNotes      string             `json:"order_notes,omitempty"`
}

// ToDomain 将应用层 DTO 转换为领域实体，校验在领域工厂中完成。
func (r *CreateOrderRequest) ToDomain() (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(r.OrderItems))
	for _, it := range r.OrderItems {
		items = append(items, domain.OrderItem{
			ProductID:      it.ProductID,
			ProductTitle:   it.ProductTitle,
			ProductSKU:     it.ProductSKU,
			Quantity:       it.Quantity,
			Price:          it.Price,
			TotalPrice:     it.TotalPrice,
			ShippingStatus: it.ShippingStatus,
			TrackingNumber: it.TrackingNumber,
		})
	}
	return domain.NewOrder(
		r.CustomerEmail,
		domain.ShippingAddress{Address: r.ShippingAddress.Address, Zip: r.ShippingAddress.Zip, Country: r.ShippingAddress.Country},
		items,
		r.Amount,
		r.ShippingCharges,
		r.Seller,
		r.OrderNotes,
	)
}

// OrderResponse 是查询/变更用例的输出数据
type OrderResponse struct {
	ID                   string             `json:"id"`
	CustomerEmail        string             `json:"customer_email"`
	ShippingAddress      ShippingAddressDTO `json:"shipping_address"`
	OrderItems           []OrderItemDTO     `json:"order_items"`
	Amount               float64            `json:"amount"`
	ShippingCharges      float64            `json:"shipping_charges"`
	Seller               string             `json:"seller"`
	OrderStatus          domain.Status      `json:"order_status"`
	TransactionReference string             `json:"transaction_reference,omitempty"`
	PaymentReference     string             `json:"payment_reference,omitempty"`
	OrderNotes           string             `json:"order_notes,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// ToOrderResponse 从领域实体转换为应用层响应 DTO。
func ToOrderResponse(o *domain.Order) *OrderResponse {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:      it.ProductID,
			ProductTitle:   it.ProductTitle,
			ProductSKU:     it.ProductSKU,
			Quantity:       it.Quantity,
			Price:          it.Price,
			TotalPrice:     it.TotalPrice,
			ShippingStatus: it.ShippingStatus,
			TrackingNumber: it.TrackingNumber,
		})
	}
	return &OrderResponse{
		ID:            o.ID,
		CustomerEmail: o.CustomerEmail,
		ShippingAddress: ShippingAddressDTO{
			Address: o.ShippingAddress.Address,
			Zip:     o.ShippingAddress.Zip,
			Country: o.ShippingAddress.Country,
		},
		OrderItems:           items,
		Amount:               o.Amount,
		ShippingCharges:      o.ShippingCharges,
		Seller:               o.Seller,
		OrderStatus:          o.Status,
		TransactionReference: o.TransactionReference,
		PaymentReference:     o.PaymentReference,
		OrderNotes:           o.OrderNotes,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

// InitiatePaymentResponse 是支付发起用例的输出数据
type InitiatePaymentResponse struct {
	OrderID              string `json:"order_id"`
	TransactionReference string `json:"transaction_reference"`
	PaymentReference     string `json:"payment_reference"`
	CheckoutURL          string `json:"checkout_url"`
}
