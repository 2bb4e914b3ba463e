// internal/service/order/infrastructure/adapter/monnify_http_adapter_test.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

const (
	testAPIKey    = "MK_TEST_APIKEY"
	testSecretKey = "TEST_SECRET_DO_NOT_LEAK"
)

// fakeProvider 模拟 provider 的 /auth/login 与 /transactions/init 两个端点。
type fakeProvider struct {
	loginCalls  atomic.Int64
	initCalls   atomic.Int64
	expiresIn   int64
	failLogin   int // 登录应答的 HTTP 状态码，0 表示成功
	failInit    int
	tokenSerial atomic.Int64
}

func (p *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		p.loginCalls.Add(1)
		if p.failLogin != 0 {
			w.WriteHeader(p.failLogin)
			return
		}
		serial := p.tokenSerial.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken": fmt.Sprintf("token-%d", serial),
			"expiresIn":   p.expiresIn,
		})
	})
	mux.HandleFunc("/transactions/init", func(w http.ResponseWriter, r *http.Request) {
		p.initCalls.Add(1)
		if p.failInit != 0 {
			w.WriteHeader(p.failInit)
			return
		}
		var req initRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{
			"transactionReference": "MNFY|TX|" + req.PaymentReference,
			"paymentReference":     req.PaymentReference,
			"checkoutUrl":          "https://checkout.example.com/" + req.PaymentReference,
		})
	})
	return mux
}

func newTestGateway(t *testing.T, provider *fakeProvider) *MonnifyHTTPAdapter {
	t.Helper()
	if provider.expiresIn == 0 {
		provider.expiresIn = 3600
	}
	server := httptest.NewServer(provider.handler())
	t.Cleanup(server.Close)

	return NewMonnifyHTTPAdapter(httpclient.NewClient(otel.Tracer("test")), MonnifyConfig{
		BaseURL:      server.URL,
		APIKey:       testAPIKey,
		SecretKey:    testSecretKey,
		ContractCode: "100693167467",
		CurrencyCode: "NGN",
	})
}

func testOrder(id string) *domain.Order {
	return &domain.Order{
		ID:            id,
		CustomerEmail: "customer@example.com",
		Amount:        56.99,
		Status:        domain.StatusPending,
	}
}

func TestInitiateCheckout(t *testing.T) {
	provider := &fakeProvider{}
	gw := newTestGateway(t, provider)

	session, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.NoError(t, err)
	assert.Equal(t, "MNFY|TX|order-o-1", session.TransactionReference)
	assert.Equal(t, "order-o-1", session.PaymentReference)
	assert.NotEmpty(t, session.CheckoutURL)
	assert.EqualValues(t, 1, provider.loginCalls.Load())
}

// 缓存有效期内的并发发起只触发一次凭证交换。
func TestInitiateCheckout_SingleCredentialExchange(t *testing.T) {
	provider := &fakeProvider{}
	gw := newTestGateway(t, provider)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("order-o-%d", i)
			_, errs[i] = gw.InitiateCheckout(context.Background(), testOrder(fmt.Sprintf("o-%d", i)), ref)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "call %d", i)
	}
	assert.EqualValues(t, 1, provider.loginCalls.Load(), "concurrent calls must share one credential exchange")
	assert.EqualValues(t, n, provider.initCalls.Load())
}

// 令牌过期后恰好触发一次刷新，之后继续命中缓存。
func TestInitiateCheckout_RefreshAfterExpiry(t *testing.T) {
	provider := &fakeProvider{}
	gw := newTestGateway(t, provider)

	current := time.Now()
	var mu sync.Mutex
	gw.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	_, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.loginCalls.Load())

	// 仍在有效期内：不刷新
	_, err = gw.InitiateCheckout(context.Background(), testOrder("o-2"), "order-o-2")
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.loginCalls.Load())

	// 越过有效期 (含安全边际)
	mu.Lock()
	current = current.Add(time.Duration(provider.expiresIn) * time.Second)
	mu.Unlock()

	_, err = gw.InitiateCheckout(context.Background(), testOrder("o-3"), "order-o-3")
	require.NoError(t, err)
	assert.EqualValues(t, 2, provider.loginCalls.Load())
}

func TestInitiateCheckout_InvalidateForcesRefresh(t *testing.T) {
	provider := &fakeProvider{}
	gw := newTestGateway(t, provider)

	_, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.NoError(t, err)
	gw.InvalidateToken()

	_, err = gw.InitiateCheckout(context.Background(), testOrder("o-2"), "order-o-2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, provider.loginCalls.Load())
}

func TestInitiateCheckout_AuthFailure(t *testing.T) {
	provider := &fakeProvider{failLogin: http.StatusUnauthorized}
	gw := newTestGateway(t, provider)

	_, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayAuth))

	// 错误信息不得泄露共享密钥或 API key
	assert.False(t, strings.Contains(err.Error(), testSecretKey))
	assert.False(t, strings.Contains(err.Error(), testAPIKey))
}

func TestInitiateCheckout_ProviderError(t *testing.T) {
	provider := &fakeProvider{failInit: http.StatusInternalServerError}
	gw := newTestGateway(t, provider)

	_, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayRequest))
	assert.False(t, strings.Contains(err.Error(), testSecretKey))
}

func TestInitiateCheckout_EmptyTokenRejected(t *testing.T) {
	provider := &fakeProvider{expiresIn: -1}
	gw := newTestGateway(t, provider)

	_, err := gw.InitiateCheckout(context.Background(), testOrder("o-1"), "order-o-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayAuth))
}
