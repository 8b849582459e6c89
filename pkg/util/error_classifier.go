package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"

	"milletsmon/pkg/circuitbreaker"
)

// StatusCoder 由携带 HTTP 状态码的错误实现（例如后端 APIError）
type StatusCoder interface {
	StatusCode() int
}

// IsRetryableError determines if an error is retryable
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// Context - 取消不重试，超时可重试
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}

	// 熔断打开 - 不在本次调用内重试
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return false, "circuit_open"
	}

	// JSON decode errors - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	// HTTP errors - 根据状态码判断
	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		switch {
		case status == http.StatusTooManyRequests:
			return true, "rate_limited"
		case status == http.StatusRequestTimeout:
			return true, "timeout"
		case status >= 500:
			return true, "server_error"
		default:
			return false, "client_error"
		}
	}

	// Network errors - 可重试
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true, "network_error"
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, "unknown_error"
}

// ShouldRetry checks if an error should be retried based on attempt count
func ShouldRetry(attempt int, maxAttempts int, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return attempt < maxAttempts
}
