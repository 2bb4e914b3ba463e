// internal/service/order/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 重复投递与迟到事件对订单状态是 no-op，唯一的可观测出口就是这里的计数器与日志。
var (
	webhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_outcomes_total",
		Help: "Payment webhook deliveries by processing outcome.",
	}, []string{"outcome"})

	paymentInitiations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment checkout initiations by result.",
	}, []string{"result"})
)
