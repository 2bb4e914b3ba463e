// internal/service/order/domain/state.go
package domain

import "fmt"

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // 订单已创建，等待支付
	StatusProcessing Status = "PROCESSING" // 支付成功，备货中
	StatusShipped    Status = "SHIPPED"    // 已发货
	StatusDelivered  Status = "DELIVERED"  // 已送达
	StatusCompleted  Status = "COMPLETED"  // 交易完成 (终态)
	StatusCancelled  Status = "CANCELLED"  // 已取消 (终态)
)

// AllStatuses 返回全部已知状态，顺序即生命周期推进顺序。
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusProcessing,
		StatusShipped,
		StatusDelivered,
		StatusCompleted,
		StatusCancelled,
	}
}

// StateMachine 校验并执行订单状态流转。
// 流转表对全部状态都是显式声明的：终态声明为空集合，
// 新增状态如果漏了表项会在构造时直接 panic，而不是默默地"什么都不允许"。
type StateMachine struct {
	transitions map[Status][]Status
}

// NewStateMachine 创建订单状态机。
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: map[Status][]Status{
			StatusPending:    {StatusProcessing, StatusCancelled},
			StatusProcessing: {StatusShipped, StatusCancelled},
			StatusShipped:    {StatusDelivered},
			StatusDelivered:  {StatusCompleted},
			StatusCompleted:  {}, // 终态
			StatusCancelled:  {}, // 终态
		},
	}

	// 构造时校验流转表覆盖所有状态
	for _, s := range AllStatuses() {
		if _, ok := sm.transitions[s]; !ok {
			panic(fmt.Sprintf("state machine transition table is missing entry for status %q", s))
		}
	}
	return sm
}

// CanTransition 判断 from -> to 是否是合法流转。
func (sm *StateMachine) CanTransition(from, to Status) bool {
	allowed, ok := sm.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition 尝试把订单推进到目标状态。
// 非法流转返回 InvalidTransitionError，订单保持原状态不变。
func (sm *StateMachine) Transition(order *Order, to Status) error {
	if !sm.CanTransition(order.Status, to) {
		return &InvalidTransitionError{From: order.Status, To: to}
	}
	order.MarkStatus(to)
	return nil
}

// AllowedTransitions 返回某状态的全部合法目标状态 (拷贝)。
func (sm *StateMachine) AllowedTransitions(from Status) []Status {
	allowed := sm.transitions[from]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}
