package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError 后端返回的非 2xx 响应
type APIError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s returned %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("backend %s returned %d: %s", e.Endpoint, e.Status, e.Message)
}

// StatusCode 供 util.IsRetryableError 判断是否重试
func (e *APIError) StatusCode() int { return e.Status }

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports a 404 from the backend.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsUnauthorized reports a 401 from the backend.
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

// IsClientError 4xx（429 除外）不计入熔断失败
func IsClientError(err error) bool {
	s := statusOf(err)
	return s >= 400 && s < 500 && s != http.StatusTooManyRequests
}
