// internal/service/order/domain/port/notification.go
package port

import (
	"context"

	"bazaar/internal/service/order/domain"
)

// NotificationProducer 是出站端口：投递模板化的邮件通知事件。
// 所有实现都必须是尽力而为的 —— 投递失败只记录日志，绝不向上传播。
type NotificationProducer interface {
	// SendTemplated 投递一条模板化通知。
	SendTemplated(ctx context.Context, event *domain.NotificationEvent) error

	// Close 释放底层资源 (如 kafka writer)。
	Close() error
}
