// internal/service/order/infrastructure/adapter/monnify_http_adapter.go
package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// tokenSafetyMargin 在 provider 报告的有效期上提前让令牌过期，
// 避免拿到一个在请求飞行途中失效的令牌。
const tokenSafetyMargin = 5 * time.Second

var tokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "payment_gateway_token_refreshes_total",
	Help: "Credential exchanges performed against the payment provider.",
})

// MonnifyConfig 是支付网关适配器的全部配置。
type MonnifyConfig struct {
	BaseURL      string
	APIKey       string
	SecretKey    string
	ContractCode string
	CurrencyCode string
}

// MonnifyHTTPAdapter 是 port.PaymentGateway 接口的 HTTP 实现。
//
// 令牌缓存是整个子系统唯一的共享可变状态：
//   - mu 保护 token/expiry 的读写，读者不会看到半写的组合
//   - singleflight 把并发过期时的刷新收敛为一次凭证交换，其余调用方等待复用
type MonnifyHTTPAdapter struct {
	client *httpclient.Client
	cfg    MonnifyConfig

	mu     sync.Mutex
	token  string
	expiry time.Time
	group  singleflight.Group

	now func() time.Time // 测试注入
}

// NewMonnifyHTTPAdapter 创建一个新的支付网关适配器实例。
func NewMonnifyHTTPAdapter(client *httpclient.Client, cfg MonnifyConfig) *MonnifyHTTPAdapter {
	return &MonnifyHTTPAdapter{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type initRequest struct {
	Amount           float64 `json:"amount"`
	CustomerEmail    string  `json:"customerEmail"`
	PaymentReference string  `json:"paymentReference"`
	CurrencyCode     string  `json:"currencyCode"`
	ContractCode     string  `json:"contractCode"`
}

type initResponse struct {
	TransactionReference string `json:"transactionReference"`
	PaymentReference     string `json:"paymentReference"`
	CheckoutURL          string `json:"checkoutUrl"`
}

// InitiateCheckout 为订单向 provider 发起一次收款。
func (a *MonnifyHTTPAdapter) InitiateCheckout(ctx context.Context, order *domain.Order, paymentReference string) (*port.CheckoutSession, error) {
	token, err := a.getToken(ctx)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	var resp initResponse
	err = a.client.PostJSON(ctx, a.cfg.BaseURL+"/transactions/init", headers, initRequest{
		Amount:           order.Amount,
		CustomerEmail:    order.CustomerEmail,
		PaymentReference: paymentReference,
		CurrencyCode:     a.cfg.CurrencyCode,
		ContractCode:     a.cfg.ContractCode,
	}, &resp)
	if err != nil {
		return nil, a.sanitize(err, "checkout initiation")
	}

	return &port.CheckoutSession{
		TransactionReference: resp.TransactionReference,
		PaymentReference:     resp.PaymentReference,
		CheckoutURL:          resp.CheckoutURL,
	}, nil
}

// getToken 返回一个仍在有效期内的 bearer token。
// 命中缓存时不产生任何网络调用；过期/缺失时只有一个请求真正执行凭证交换。
func (a *MonnifyHTTPAdapter) getToken(ctx context.Context) (string, error) {
	if token, ok := a.cachedToken(); ok {
		return token, nil
	}

	v, err, _ := a.group.Do("token", func() (interface{}, error) {
		// 排队等待刷新的调用进来时，令牌可能已被前一个航班写好
		if token, ok := a.cachedToken(); ok {
			return token, nil
		}
		return a.exchangeCredentials(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *MonnifyHTTPAdapter) cachedToken() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expiry) {
		return a.token, true
	}
	return "", false
}

// InvalidateToken 丢弃缓存的令牌，下一次调用会强制刷新。
func (a *MonnifyHTTPAdapter) InvalidateToken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expiry = time.Time{}
}

// exchangeCredentials 用 basic-auth 凭证向 provider 换取 bearer token。
func (a *MonnifyHTTPAdapter) exchangeCredentials(ctx context.Context) (string, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(a.cfg.APIKey + ":" + a.cfg.SecretKey))
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+basic)

	var resp loginResponse
	if err := a.client.PostJSON(ctx, a.cfg.BaseURL+"/auth/login", headers, nil, &resp); err != nil {
		return "", a.sanitize(err, "credential exchange")
	}
	if resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		return "", errors.Wrap(domain.ErrGatewayAuth, "provider returned an empty token")
	}

	a.mu.Lock()
	a.token = resp.AccessToken
	a.expiry = a.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSafetyMargin)
	a.mu.Unlock()

	tokenRefreshes.Inc()
	logger.Ctx(ctx).Info().Int64("expires_in", resp.ExpiresIn).Msg("payment gateway token refreshed")
	return resp.AccessToken, nil
}

// sanitize 把底层错误映射到领域错误分类。
// 错误信息只携带状态码，绝不包含凭证或响应体。
func (a *MonnifyHTTPAdapter) sanitize(err error, op string) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return errors.Wrap(domain.ErrGatewayAuth, fmt.Sprintf("%s rejected with status %d", op, statusErr.StatusCode))
		}
		return errors.Wrap(domain.ErrGatewayRequest, fmt.Sprintf("%s failed with status %d", op, statusErr.StatusCode))
	}
	return errors.Wrap(domain.ErrGatewayRequest, fmt.Sprintf("%s failed: transport error", op))
}
