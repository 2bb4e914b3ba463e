// internal/service/order/domain/order_test.go
package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_Validation(t *testing.T) {
	validItems := []OrderItem{{ProductID: "p-1", Quantity: 1, Price: 10, TotalPrice: 10}}
	validAddr := ShippingAddress{Address: "123 Main St", Zip: "10001", Country: "USA"}

	tests := []struct {
		name    string
		mutate  func() (*Order, error)
		wantErr bool
	}{
		{"valid", func() (*Order, error) {
			return NewOrder("a@b.com", validAddr, validItems, 15.99, 5.99, "seller-1", "")
		}, false},
		{"missing email", func() (*Order, error) {
			return NewOrder("", validAddr, validItems, 15.99, 5.99, "seller-1", "")
		}, true},
		{"missing seller", func() (*Order, error) {
			return NewOrder("a@b.com", validAddr, validItems, 15.99, 5.99, "", "")
		}, true},
		{"incomplete address", func() (*Order, error) {
			return NewOrder("a@b.com", ShippingAddress{Address: "x"}, validItems, 15.99, 5.99, "seller-1", "")
		}, true},
		{"no items", func() (*Order, error) {
			return NewOrder("a@b.com", validAddr, nil, 15.99, 5.99, "seller-1", "")
		}, true},
		{"zero quantity", func() (*Order, error) {
			return NewOrder("a@b.com", validAddr, []OrderItem{{ProductID: "p-1", Quantity: 0, Price: 10, TotalPrice: 0}}, 0, 0, "seller-1", "")
		}, true},
		{"negative amount", func() (*Order, error) {
			return NewOrder("a@b.com", validAddr, validItems, -1, 5.99, "seller-1", "")
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := tt.mutate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				require.NoError(t, err)
				assert.Equal(t, StatusPending, order.Status)
			}
		})
	}
}

func TestNewOrder_NormalizesEmail(t *testing.T) {
	order, err := NewOrder(
		"Customer@Example.COM",
		ShippingAddress{Address: "123 Main St", Zip: "10001", Country: "USA"},
		[]OrderItem{{ProductID: "p-1", Quantity: 1, Price: 10, TotalPrice: 10}},
		10, 0, "seller-1", "",
	)
	require.NoError(t, err)
	assert.Equal(t, "customer@example.com", order.CustomerEmail)
}

func TestPaymentReference_RoundTrip(t *testing.T) {
	ref := PaymentReferenceForOrder("64ab1f2e")
	assert.Equal(t, "order-64ab1f2e", ref)

	id, ok := OrderIDFromPaymentReference(ref)
	require.True(t, ok)
	assert.Equal(t, "64ab1f2e", id)
}

// 订单 ID 本身可以包含分隔符 (uuid)，解析必须剥离固定前缀而不是按 '-' 切分。
func TestPaymentReference_UUIDSurvives(t *testing.T) {
	const uuid = "550e8400-e29b-41d4-a716-446655440000"
	id, ok := OrderIDFromPaymentReference(PaymentReferenceForOrder(uuid))
	require.True(t, ok)
	assert.Equal(t, uuid, id)
}

func TestPaymentReference_Malformed(t *testing.T) {
	for _, ref := range []string{"", "order-", "payment-123", "64ab1f2e"} {
		_, ok := OrderIDFromPaymentReference(ref)
		assert.False(t, ok, "ref %q should not parse", ref)
	}
}

func TestAmountConsistent(t *testing.T) {
	order, err := NewOrder(
		"a@b.com",
		ShippingAddress{Address: "123 Main St", Zip: "10001", Country: "USA"},
		[]OrderItem{{ProductID: "p-1", Quantity: 2, Price: 25.5, TotalPrice: 51.0}},
		56.99, 5.99, "seller-1", "",
	)
	require.NoError(t, err)
	assert.True(t, order.AmountConsistent())

	order.Amount = 60.5
	assert.False(t, order.AmountConsistent())
}
