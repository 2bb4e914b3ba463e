// internal/service/order/application/webhook.go
package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"time"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WebhookOutcome 是一次回调处理的业务结果。
// 对 provider 统一应答 200，区分只为观测 (metrics + 日志)。
type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"   // 状态流转已生效
	OutcomeDuplicate WebhookOutcome = "duplicate" // 重复投递，结果早已生效
	OutcomeStale     WebhookOutcome = "stale"     // 迟到/乱序事件，流转已不合法
	OutcomeIgnored   WebhookOutcome = "ignored"   // 未知的 provider 状态
	OutcomePending   WebhookOutcome = "pending"   // 订单尚未出现，已暂存等待发起流程提交
	OutcomeRejected  WebhookOutcome = "rejected"  // 签名校验失败
)

// webhookPayload 是 provider 回调体。签名针对原始字节计算，
// 所以解析必须发生在验签之后。
type webhookPayload struct {
	PaymentReference string `json:"paymentReference"`
	PaymentStatus    string `json:"paymentStatus"`
}

// PaymentWebhookProcessor 处理支付提供商的异步回调：
// 验签 -> 解析 -> 将引用解析回订单 -> 驱动状态机。
// 回调与支付发起之间没有顺序保证，订单暂时找不到属于瞬态情况，
// 通过有限重试 + redis 暂存来消化，而不是当成永久失败。
type PaymentWebhookProcessor struct {
	secret []byte
	orders *OrderApplicationService
	tracer trace.Tracer

	pendingEvents port.PendingPaymentEvents
	lookupRetries int
	lookupBackoff time.Duration
	stashTTL      time.Duration
}

func NewPaymentWebhookProcessor(secret string, orders *OrderApplicationService, pendingEvents port.PendingPaymentEvents, tracer trace.Tracer) *PaymentWebhookProcessor {
	return &PaymentWebhookProcessor{
		secret:        []byte(secret),
		orders:        orders,
		tracer:        tracer,
		pendingEvents: pendingEvents,
		lookupRetries: 3,
		lookupBackoff: 100 * time.Millisecond,
		stashTTL:      15 * time.Minute,
	}
}

// Handle 处理一次回调投递。
// 返回的 error 只代表基础设施故障 (存储不可用等)，接口层据此决定 5xx；
// 其余一切业务结果 (包括验签失败) 都通过 WebhookOutcome 表达并应答 200。
func (p *PaymentWebhookProcessor) Handle(ctx context.Context, rawBody []byte, signature string) (WebhookOutcome, error) {
	ctx, span := p.tracer.Start(ctx, "webhook.Handle")
	defer span.End()

	if !p.VerifySignature(rawBody, signature) {
		// 不区分"签名缺失/格式错/不匹配"，避免给攻击者提供探测信号
		logger.Ctx(ctx).Warn().Msg("rejected payment webhook with invalid signature")
		webhookOutcomes.WithLabelValues(string(OutcomeRejected)).Inc()
		return OutcomeRejected, nil
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("payment webhook body is not valid JSON")
		webhookOutcomes.WithLabelValues(string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}
	if payload.PaymentReference == "" {
		logger.Ctx(ctx).Warn().Msg("payment webhook is missing paymentReference")
		webhookOutcomes.WithLabelValues(string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}
	span.SetAttributes(
		attribute.String("payment.reference", payload.PaymentReference),
		attribute.String("payment.provider_status", payload.PaymentStatus),
	)

	outcome, err := p.applyWithRetry(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	webhookOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

// applyWithRetry 应用回调结果；订单还没出现时做短暂的退避重试，
// 仍然找不到就按支付引用暂存，等支付发起流程提交后取走。
func (p *PaymentWebhookProcessor) applyWithRetry(ctx context.Context, payload webhookPayload) (WebhookOutcome, error) {
	backoff := p.lookupBackoff
	for attempt := 0; ; attempt++ {
		outcome, err := p.orders.ApplyPaymentOutcome(ctx, payload.PaymentReference, payload.PaymentStatus)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, domain.ErrValidation) {
			// 引用不符合本系统的构造规则，重试和暂存都没有意义
			logger.Ctx(ctx).Warn().Err(err).Str("payment_reference", payload.PaymentReference).Msg("dropping webhook with unresolvable payment reference")
			return OutcomeIgnored, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return "", err
		}
		if attempt >= p.lookupRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}

	// 回调赶在本地发起提交之前到达：暂存结果，不能默默丢弃
	logger.Ctx(ctx).Info().
		Str("payment_reference", payload.PaymentReference).
		Str("payment_status", payload.PaymentStatus).
		Msg("webhook arrived before local order was visible, stashing outcome")
	if err := p.pendingEvents.Stash(ctx, payload.PaymentReference, payload.PaymentStatus, p.stashTTL); err != nil {
		return "", errors.Wrap(err, "failed to stash pending payment event")
	}
	return OutcomePending, nil
}

// VerifySignature 校验 provider 在请求头中携带的 HMAC-SHA512 十六进制签名。
// 针对原始请求体计算，常数时间比较。
func (p *PaymentWebhookProcessor) VerifySignature(rawBody []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(expected, provided) == 1
}
