// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Client 是一个可追踪的、可注入的HTTP客户端。
// 对瞬时的网络错误做有限次数的退避重试；对业务拒绝 (非2xx响应) 绝不重试，
// 由调用方根据 StatusError 自行决策。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client

	// RequestTimeout 是单次请求的兜底超时，调用方 ctx 带了 deadline 时以 ctx 为准
	RequestTimeout time.Duration
	// MaxRetries 是传输层错误的最大重试次数
	MaxRetries int
	// RetryBackoff 是首次重试的等待时间，之后按指数增长
	RetryBackoff time.Duration
}

// StatusError 表示服务端返回了非 2xx 的响应。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer) *Client {
	// 在这里创建 http.Client，并且不设置 Timeout 字段
	// 让其完全受控于每次请求传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:         tracer,
		HTTPClient:     httpClient,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   200 * time.Millisecond,
	}
}

// PostJSON 将 body 序列化为 JSON 发送到 serviceURL，并把响应解码到 out (可为 nil)。
func (c *Client) PostJSON(ctx context.Context, serviceURL string, headers http.Header, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	return c.doJSON(ctx, http.MethodPost, serviceURL, headers, payload, out)
}

// GetJSON 发送 GET 请求并把响应解码到 out。
func (c *Client) GetJSON(ctx context.Context, serviceURL string, headers http.Header, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, serviceURL, headers, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, serviceURL string, headers http.Header, payload []byte, out interface{}) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	// 从 URL 中解析出服务名用于 Span
	spanName := fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])

	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.url", parsedURL.String()),
		attribute.String("http.method", method),
	)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	var resp *http.Response
	backoff := c.RetryBackoff
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), bytes.NewReader(payload))
		if err != nil {
			span.RecordError(err)
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for key, values := range headers {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err = c.HTTPClient.Do(req)
		if err == nil {
			break
		}

		// 传输层错误：退避后重试；ctx 取消或重试耗尽则放弃
		span.RecordError(err)
		if attempt >= c.MaxRetries || ctx.Err() != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			span.SetStatus(codes.Error, ctx.Err().Error())
			return ctx.Err()
		}
		backoff *= 2
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}
