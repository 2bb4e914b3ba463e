// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"database/sql"

	"bazaar/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(m *OrderModel) *domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items))
	for _, it := range m.Items {
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
	return &domain.Order{
		ID:            m.ID,
		CustomerEmail: m.CustomerEmail,
		ShippingAddress: domain.ShippingAddress{
			Address: m.AddressLine,
			Zip:     m.AddressZip,
			Country: m.AddressCountry,
		},
		Items:                items,
		Amount:               m.Amount,
		ShippingCharges:      m.ShippingCharges,
		Seller:               m.Seller,
		Status:               domain.Status(m.Status),
		TransactionReference: m.TransactionReference.String,
		PaymentReference:     m.PaymentReference.String,
		OrderNotes:           m.OrderNotes,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// ToOrderModel 将领域模型转换为数据库模型
func ToOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemModel{
			OrderID:        o.ID,
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
	return &OrderModel{
		ID:                   o.ID,
		CustomerEmail:        o.CustomerEmail,
		AddressLine:          o.ShippingAddress.Address,
		AddressZip:           o.ShippingAddress.Zip,
		AddressCountry:       o.ShippingAddress.Country,
		Amount:               o.Amount,
		ShippingCharges:      o.ShippingCharges,
		Seller:               o.Seller,
		Status:               string(o.Status),
		TransactionReference: nullString(o.TransactionReference),
		PaymentReference:     nullString(o.PaymentReference),
		OrderNotes:           o.OrderNotes,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		Items:                items,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
