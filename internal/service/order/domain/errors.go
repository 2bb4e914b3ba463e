// internal/service/order/domain/errors.go
package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// 订单与支付核心的错误分类。调用方用 errors.Is / errors.As 判别，
// 接口层再将其映射为 HTTP 状态码。
var (
	ErrValidation         = errors.New("order validation failed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrGatewayAuth        = errors.New("payment gateway authentication failed")
	ErrGatewayRequest     = errors.New("payment gateway request failed")
	ErrDuplicateReference = errors.New("payment reference already exists")

	// ErrConflict 表示状态的 CAS 更新输给了并发写，可安全重试
	ErrConflict = errors.New("concurrent order update conflict")
)

// InvalidTransitionError 携带非法流转的起止状态，便于调用方和日志定位问题。
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from '%s' to '%s'", e.From, e.To)
}

// Is 让 errors.Is(err, ErrInvalidTransition) 对类型化错误同样成立。
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
