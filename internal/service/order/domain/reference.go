// internal/service/order/domain/reference.go
package domain

import "strings"

// paymentReferencePrefix 是支付关联引用的固定前缀。
// 发起支付与处理回调必须使用同一套构造/解析规则，所以集中定义在领域层。
const paymentReferencePrefix = "order-"

// PaymentReferenceForOrder 为订单生成确定性的支付引用。
// 这是回调方向上把 provider 侧交易关联回本地订单的唯一通道。
func PaymentReferenceForOrder(orderID string) string {
	return paymentReferencePrefix + orderID
}

// OrderIDFromPaymentReference 从支付引用还原订单 ID。
// 严格地剥离固定前缀，而不是按分隔符切分 —— 订单 ID (uuid) 自身就包含 '-'。
func OrderIDFromPaymentReference(ref string) (string, bool) {
	id, ok := strings.CutPrefix(ref, paymentReferencePrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
