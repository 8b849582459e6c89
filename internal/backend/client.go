package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"milletsmon/pkg/circuitbreaker"
	"milletsmon/pkg/config"
	"milletsmon/pkg/logger"
	"milletsmon/pkg/metrics"
	"milletsmon/pkg/otel"
	"milletsmon/pkg/trace"
)

// maxBodySize 后端响应体上限
const maxBodySize = 10 << 20

// Client 外部监测后端的 REST 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// Option 配置 Client
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client（测试使用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker 替换熔断器
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func NewClient(cfg config.BackendConfig, log *zap.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otel.NewTransport(nil),
		},
		logger: log,
	}

	bcfg := circuitbreaker.DefaultConfig()
	bcfg.IsFailure = func(err error) bool {
		// 调用方取消不代表后端故障
		return !IsClientError(err) && !errors.Is(err, context.Canceled)
	}
	bcfg.OnStateChange = func(from, to circuitbreaker.State) {
		log.Warn("Backend circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	c.breaker = circuitbreaker.NewCircuitBreaker(bcfg)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState 当前熔断器状态（readyz 使用）
func (c *Client) BreakerState() circuitbreaker.State { return c.breaker.GetState() }

// call 描述一次后端调用；route 是用于指标的路由模板
type call struct {
	method string
	path   string
	route  string
	token  string
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, cl call) error {
	start := time.Now()
	status := "error"

	err := c.breaker.Execute(func() error {
		code, err := c.roundTrip(ctx, cl)
		if code > 0 {
			status = strconv.Itoa(code)
		}
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		status = "circuit_open"
	}

	metrics.RecordBackendCallLatency(cl.method+" "+cl.route, status, time.Since(start))

	if err != nil {
		logger.WithTrace(ctx, c.logger).Debug("Backend call failed",
			zap.String("method", cl.method),
			zap.String("route", cl.route),
			zap.String("status", status),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call) (int, error) {
	var body io.Reader
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backend %s unreachable: %w", cl.route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &APIError{
			Status:   resp.StatusCode,
			Message:  errorMessage(raw),
			Endpoint: cl.method + " " + cl.route,
		}
	}

	if cl.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := decodeBody(raw, cl.out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", cl.route, err)
	}
	return resp.StatusCode, nil
}

// decodeBody 兼容两种响应：裸 JSON，或 {"data": ...} 包装
func decodeBody(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if data, ok := envelope["data"]; ok {
				return json.Unmarshal(data, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

// errorMessage 提取 {"message": ...} 或 {"error": ...}
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
