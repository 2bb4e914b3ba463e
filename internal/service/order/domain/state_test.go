// internal/service/order/domain/state_test.go
package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, status Status) *Order {
	t.Helper()
	order, err := NewOrder(
		"customer@example.com",
		ShippingAddress{Address: "123 Main St", Zip: "10001", Country: "USA"},
		[]OrderItem{{ProductID: "p-1", ProductTitle: "Wireless Mouse", Quantity: 2, Price: 25.5, TotalPrice: 51.0}},
		60.5,
		5.99,
		"seller-1",
		"",
	)
	require.NoError(t, err)
	order.ID = "64ab1f2e"
	order.Status = status
	return order
}

// 合法流转的全集。表驱动地核对状态机：任何不在这里的组合都必须被拒绝。
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func TestStateMachine_AllPairs(t *testing.T) {
	sm := NewStateMachine()

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			allowed := false
			for _, s := range legalTransitions[from] {
				if s == to {
					allowed = true
				}
			}

			order := newTestOrder(t, from)
			err := sm.Transition(order, to)

			if allowed {
				assert.NoError(t, err, "%s -> %s should be allowed", from, to)
				assert.Equal(t, to, order.Status)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", from, to)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				// 失败时订单保持原状态
				assert.Equal(t, from, order.Status)

				var ite *InvalidTransitionError
				require.True(t, errors.As(err, &ite))
				assert.Equal(t, from, ite.From)
				assert.Equal(t, to, ite.To)
			}
		}
	}
}

func TestStateMachine_TerminalStatesHaveNoExits(t *testing.T) {
	sm := NewStateMachine()
	assert.Empty(t, sm.AllowedTransitions(StatusCompleted))
	assert.Empty(t, sm.AllowedTransitions(StatusCancelled))
}

func TestStateMachine_UnknownStatusAllowsNothing(t *testing.T) {
	sm := NewStateMachine()
	assert.False(t, sm.CanTransition(Status("REFUNDED"), StatusPending))
}

// Scenario: PENDING -> PROCESSING -> SHIPPED 合法，SHIPPED -> PROCESSING 回退被拒。
func TestStateMachine_ForwardThenIllegalBackstep(t *testing.T) {
	sm := NewStateMachine()
	order := newTestOrder(t, StatusPending)
	require.Equal(t, 60.5, order.Amount)

	require.NoError(t, sm.Transition(order, StatusProcessing))
	require.NoError(t, sm.Transition(order, StatusShipped))

	err := sm.Transition(order, StatusProcessing)
	require.Error(t, err)
	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, StatusShipped, ite.From)
	assert.Equal(t, StatusProcessing, ite.To)
	assert.Equal(t, StatusShipped, order.Status)
}
