// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const serviceName = "order-service"

// signatureHeader 是 provider 放置 HMAC-SHA512 十六进制签名的请求头。
const signatureHeader = "monnify-signature"

// OrderHandler 封装了订单服务的 HTTP 处理器
type OrderHandler struct {
	service *application.OrderApplicationService
	webhook *application.PaymentWebhookProcessor
	users   port.UserDirectory
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService, webhook *application.PaymentWebhookProcessor, users port.UserDirectory) *OrderHandler {
	return &OrderHandler{service: service, webhook: webhook, users: users}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/orders", h.ordersHandler)
	mux.HandleFunc("/orders/by_seller", h.ordersBySellerHandler)
	mux.HandleFunc("/orders/status", h.updateStatusHandler)
	mux.HandleFunc("/orders/pay", h.initiatePaymentHandler)
	mux.HandleFunc("/payments/webhook", h.paymentWebhookHandler)
}

func (h *OrderHandler) ordersHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.Orders")
	defer span.End()

	switch r.Method {
	case http.MethodPost:
		var req application.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		resp, err := h.service.CreateOrder(ctx, &req)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)

	case http.MethodGet:
		id := r.URL.Query().Get("id")
		if id == "" {
			resp, err := h.service.FindAll(ctx)
			if err != nil {
				h.writeError(ctx, w, err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}
		resp, err := h.service.FindOne(ctx, id)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *OrderHandler) ordersBySellerHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.OrdersBySeller")
	defer span.End()

	sellerID := r.URL.Query().Get("seller_id")
	if sellerID == "" {
		http.Error(w, "seller_id is required", http.StatusBadRequest)
		return
	}

	// 角色检查走用户服务；目录不可用时放行并记录，
	// 查询接口的可用性优先于这里的防御性校验
	if h.users != nil {
		user, err := h.users.FindByID(ctx, sellerID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("seller_id", sellerID).Msg("user lookup failed, skipping role check")
		} else if user.Role != "seller" && user.Role != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	resp, err := h.service.FindBySeller(ctx, sellerID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
}

func (h *OrderHandler) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.UpdateOrderStatus")
	defer span.End()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || req.OrderStatus == "" {
		http.Error(w, "order_id and order_status are required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.UpdateStatus(ctx, req.OrderID, domain.Status(req.OrderStatus))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type initiatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

func (h *OrderHandler) initiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.InitiatePayment")
	defer span.End()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.InitiatePayment(ctx, req.OrderID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// paymentWebhookHandler 处理 provider 的异步回调。
// 签名针对原始请求体计算，所以必须先读原始字节，不能过 JSON 绑定。
// 除了基础设施故障 (让 provider 重投) 之外，一律应答 200。
func (h *OrderHandler) paymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.PaymentWebhook")
	defer span.End()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	outcome, err := h.webhook.Handle(ctx, rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		// 存储等基础设施故障：5xx 让 provider 稍后重投
		logger.Ctx(ctx).Error().Err(err).Msg("payment webhook processing failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// writeError 把领域错误映射为 HTTP 状态码。
func (h *OrderHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicateReference):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGatewayAuth), errors.Is(err, domain.ErrGatewayRequest):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Msg("request failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
