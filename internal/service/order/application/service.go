// internal/service/order/application/service.go
package application

import (
	"context"
	"strconv"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Provider 侧的支付结果状态。除这两个值以外的状态一律忽略。
const (
	ProviderStatusPaid   = "PAID"
	ProviderStatusFailed = "FAILED"
)

// statusUpdateRetries 是 CAS 输给并发写之后的最大重试次数。
const statusUpdateRetries = 3

// OrderApplicationService 只关注业务流程编排：
// 订单的创建、查询、状态推进，以及与支付网关的往返。
type OrderApplicationService struct {
	orderRepo    domain.OrderRepository
	stateMachine *domain.StateMachine
	tracer       trace.Tracer

	gateway       port.PaymentGateway
	notifier      port.NotificationProducer
	pendingEvents port.PendingPaymentEvents
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, tracer trace.Tracer, gateway port.PaymentGateway, notifier port.NotificationProducer, pendingEvents port.PendingPaymentEvents) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo:     orderRepo,
		stateMachine:  domain.NewStateMachine(),
		tracer:        tracer,
		gateway:       gateway,
		notifier:      notifier,
		pendingEvents: pendingEvents,
	}
}

// CreateOrder 创建一个 PENDING 状态的新订单。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	orderEntity, err := req.ToDomain()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 金额与行项目合计不一致不是硬错误 (历史数据也不保证)，但必须可见
	if !orderEntity.AmountConsistent() {
		logger.Ctx(ctx).Warn().
			Float64("amount", orderEntity.Amount).
			Float64("line_total", orderEntity.LineTotal()).
			Msg("order amount does not match line totals plus shipping")
	}

	if err := s.orderRepo.Create(ctx, orderEntity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save initial order")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", orderEntity.ID))

	s.notify(ctx, &domain.NotificationEvent{
		Recipient: orderEntity.CustomerEmail,
		Template:  domain.TemplateOrderCreated,
		Data: map[string]string{
			"order_id": orderEntity.ID,
			"amount":   strconv.FormatFloat(orderEntity.Amount, 'f', 2, 64),
		},
	})

	return ToOrderResponse(orderEntity), nil
}

// FindOne 按 ID 查询订单。
func (s *OrderApplicationService) FindOne(ctx context.Context, id string) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindOne")
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// FindBySeller 查询某卖家的全部订单，新订单在前。
func (s *OrderApplicationService) FindBySeller(ctx context.Context, sellerID string) ([]*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindBySeller")
	defer span.End()

	orders, err := s.orderRepo.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out, nil
}

// FindAll 返回全部订单，新订单在前。
func (s *OrderApplicationService) FindAll(ctx context.Context) ([]*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindAll")
	defer span.End()

	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out, nil
}

// UpdateStatus 将订单推进到目标状态，由状态机裁决合法性。
// 非法流转返回 InvalidTransitionError，由接口层映射为客户端错误。
func (s *OrderApplicationService) UpdateStatus(ctx context.Context, id string, target domain.Status) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.target_status", string(target)))

	order, err := s.transitionWithRetry(ctx, id, target)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notify(ctx, &domain.NotificationEvent{
		Recipient: order.CustomerEmail,
		Template:  domain.TemplateStatusChanged,
		Data: map[string]string{
			"order_id": order.ID,
			"status":   string(order.Status),
		},
	})
	return ToOrderResponse(order), nil
}

// transitionWithRetry 执行 "读取-校验-CAS写入" 循环。
// CAS 失败说明另一个写者抢先修改了状态，重新读取后用最新状态再裁决一次，
// 这样两个并发的合法流转不会互相丢失更新，非法的组合依旧会被状态机拒绝。
func (s *OrderApplicationService) transitionWithRetry(ctx context.Context, id string, target domain.Status) (*domain.Order, error) {
	for attempt := 0; attempt < statusUpdateRetries; attempt++ {
		order, err := s.orderRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		current := order.Status
		if err := s.stateMachine.Transition(order, target); err != nil {
			return nil, err
		}

		err = s.orderRepo.UpdateStatus(ctx, id, current, target)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		logger.Ctx(ctx).Info().Str("order_id", id).Msg("status CAS lost a concurrent update, re-reading")
	}
	return nil, errors.Wrapf(domain.ErrConflict, "order %s", id)
}

// InitiatePayment 为订单发起一次支付。
//
// 确定性的 payment_reference 在呼出网关【之前】先持久化到订单上：
// 两步提交不是原子的，先落下 "支付已发起待确认" 的标记，
// 进程在两步之间崩溃时本地留有可对账的线索，而不是 provider 侧挂着一笔孤儿交易。
func (s *OrderApplicationService) InitiatePayment(ctx context.Context, orderID string) (*InitiatePaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.InitiatePayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.StatusPending {
		return nil, errors.Wrapf(domain.ErrValidation, "order %s is %s, only PENDING orders can be paid", orderID, order.Status)
	}

	// 支付引用是从订单 ID 确定性推导的，也是回调方向的唯一关联通道
	paymentRef := domain.PaymentReferenceForOrder(order.ID)
	if order.PaymentReference == "" {
		if err := s.orderRepo.PatchGatewayFields(ctx, order.ID, domain.GatewayFieldsPatch{PaymentReference: &paymentRef}); err != nil {
			span.RecordError(err)
			return nil, err
		}
		order.PaymentReference = paymentRef
	}

	session, err := s.gateway.InitiateCheckout(ctx, order, paymentRef)
	if err != nil {
		paymentInitiations.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout initiation failed")
		return nil, err
	}

	if err := s.orderRepo.PatchGatewayFields(ctx, order.ID, domain.GatewayFieldsPatch{TransactionReference: &session.TransactionReference}); err != nil {
		// provider 侧已经持有一笔有效交易；引用暂存在日志里等待对账
		paymentInitiations.WithLabelValues("persist_failed").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID).
			Str("transaction_reference", session.TransactionReference).
			Msg("checkout succeeded but transaction reference could not be persisted")
		span.RecordError(err)
		return nil, err
	}
	paymentInitiations.WithLabelValues("ok").Inc()

	// 回调可能赶在上面的持久化之前到达并被暂存，这里取走并应用
	s.drainPendingOutcome(ctx, paymentRef)

	return &InitiatePaymentResponse{
		OrderID:              order.ID,
		TransactionReference: session.TransactionReference,
		PaymentReference:     session.PaymentReference,
		CheckoutURL:          session.CheckoutURL,
	}, nil
}

// drainPendingOutcome 应用在支付发起完成前就到达、被暂存的回调结果。
func (s *OrderApplicationService) drainPendingOutcome(ctx context.Context, paymentRef string) {
	if s.pendingEvents == nil {
		return
	}
	status, ok, err := s.pendingEvents.Take(ctx, paymentRef)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("payment_reference", paymentRef).Msg("failed to check pending payment events")
		return
	}
	if !ok {
		return
	}
	logger.Ctx(ctx).Info().Str("payment_reference", paymentRef).Str("payment_status", status).
		Msg("applying payment outcome that arrived before initiation committed")
	if _, err := s.ApplyPaymentOutcome(ctx, paymentRef, status); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("payment_reference", paymentRef).Msg("failed to apply stashed payment outcome")
	}
}

// ApplyPaymentOutcome 将 provider 报告的支付结果落到订单上。
// 回调投递是 at-least-once 的，这里必须幂等：
//   - 订单已处于目标状态        -> duplicate，成功返回
//   - 流转非法 (迟到/乱序事件)  -> stale，吞掉错误只留日志
//   - 未知的 provider 状态      -> ignored
//
// 订单不存在时返回 ErrOrderNotFound，由 webhook 处理器决定重试或暂存。
func (s *OrderApplicationService) ApplyPaymentOutcome(ctx context.Context, paymentRef, providerStatus string) (WebhookOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyPaymentOutcome")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", paymentRef),
		attribute.String("payment.provider_status", providerStatus),
	)

	target, relevant := targetStatusFor(providerStatus)
	if !relevant {
		logger.Ctx(ctx).Info().Str("payment_status", providerStatus).Msg("ignoring webhook with unhandled payment status")
		return OutcomeIgnored, nil
	}

	for attempt := 0; attempt < statusUpdateRetries; attempt++ {
		order, err := s.resolveOrder(ctx, paymentRef)
		if err != nil {
			return "", err
		}

		if order.Status == target {
			// 重复投递：结果已经生效
			return OutcomeDuplicate, nil
		}
		if !s.stateMachine.CanTransition(order.Status, target) {
			// 迟到/乱序事件：例如订单已 COMPLETED 之后才收到 PAID。
			// 对 provider 而言这笔投递是成功的，吞掉错误，只留观测痕迹。
			logger.Ctx(ctx).Warn().
				Str("order_id", order.ID).
				Str("current_status", string(order.Status)).
				Str("target_status", string(target)).
				Msg("webhook arrived for an order that can no longer take this transition")
			return OutcomeStale, nil
		}

		err = s.orderRepo.UpdateStatus(ctx, order.ID, order.Status, target)
		if err == nil {
			s.notifyPaymentOutcome(ctx, order, target)
			return OutcomeApplied, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return "", err
		}
		// 与另一个写者赛跑输了，重新读取再裁决 (可能这时已变成 duplicate)
	}
	return "", errors.Wrapf(domain.ErrConflict, "payment reference %s", paymentRef)
}

// resolveOrder 把支付引用解析回订单。
// 优先用持久化的引用做精确查找；订单还没被打上引用时 (发起流程尚未提交)，
// 退回到与构造规则一致的前缀剥离。
func (s *OrderApplicationService) resolveOrder(ctx context.Context, paymentRef string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByPaymentReference(ctx, paymentRef)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	id, ok := domain.OrderIDFromPaymentReference(paymentRef)
	if !ok {
		return nil, errors.Wrapf(domain.ErrValidation, "malformed payment reference %q", paymentRef)
	}
	return s.orderRepo.FindByID(ctx, id)
}

func (s *OrderApplicationService) notifyPaymentOutcome(ctx context.Context, order *domain.Order, target domain.Status) {
	template := domain.TemplatePaymentPaid
	if target == domain.StatusCancelled {
		template = domain.TemplatePaymentFailed
	}
	s.notify(ctx, &domain.NotificationEvent{
		Recipient: order.CustomerEmail,
		Template:  template,
		Data: map[string]string{
			"order_id": order.ID,
			"amount":   strconv.FormatFloat(order.Amount, 'f', 2, 64),
		},
	})
}

// notify 投递一条通知事件。通知是尽力而为的：失败只记日志，绝不影响主流程。
func (s *OrderApplicationService) notify(ctx context.Context, event *domain.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendTemplated(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("template", event.Template).
			Str("recipient", event.Recipient).
			Msg("failed to enqueue notification")
	}
}

// targetStatusFor 将 provider 状态映射为订单目标状态。
// 未列出的状态返回 false，调用方按 no-op 处理。
func targetStatusFor(providerStatus string) (domain.Status, bool) {
	switch providerStatus {
	case ProviderStatusPaid:
		return domain.StatusProcessing, true
	case ProviderStatusFailed:
		return domain.StatusCancelled, true
	default:
		return "", false
	}
}
