// internal/service/order/domain/port/payment.go
package port

import (
	"context"

	"bazaar/internal/service/order/domain"
)

// CheckoutSession 是支付网关为一次支付发起返回的结果。
type CheckoutSession struct {
	TransactionReference string
	PaymentReference     string
	CheckoutURL          string
}

// PaymentGateway 是出站端口：向外部支付提供商发起收款。
// 实现负责凭证交换与令牌缓存；引用字段的持久化由应用层编排。
type PaymentGateway interface {
	// InitiateCheckout 以给定的支付引用为订单发起一次收款。
	// 认证失败返回 ErrGatewayAuth，网络/提供商错误返回 ErrGatewayRequest，
	// 错误信息不得包含共享密钥。
	InitiateCheckout(ctx context.Context, order *domain.Order, paymentReference string) (*CheckoutSession, error)
}
