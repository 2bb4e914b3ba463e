// internal/service/order/domain/event.go
package domain

// 通知模板名。模板渲染由通知服务负责，这里只约定事件载体。
const (
	TemplateOrderCreated  = "order_created"
	TemplatePaymentPaid   = "payment_received"
	TemplatePaymentFailed = "payment_failed"
	TemplateStatusChanged = "order_status_changed"
)

// NotificationEvent 是投递给通知服务的邮件事件载体。
// 通知是 fire-and-forget 的：投递失败不允许影响订单与支付处理。
type NotificationEvent struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Data      map[string]string `json:"data,omitempty"`
}
