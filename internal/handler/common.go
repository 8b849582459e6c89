package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/internal/report"
	"milletsmon/internal/store"
	"milletsmon/internal/upload"
	"milletsmon/internal/validation"
	"milletsmon/pkg/circuitbreaker"
	"milletsmon/pkg/logger"
	"milletsmon/pkg/rbac"
	"milletsmon/pkg/util"
)

// SessionKey gin context 中保存 *model.Session 的键
const SessionKey = "session"

// SessionFrom 读取鉴权中间件写入的会话
func SessionFrom(c *gin.Context) (*model.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*model.Session)
	return s, ok && s != nil
}

// identity 未登录时为访客身份
func identity(c *gin.Context) backend.Identity {
	s, _ := SessionFrom(c)
	return store.IdentityOf(s)
}

func token(c *gin.Context) string {
	return identity(c).Token
}

func forceRefresh(c *gin.Context) bool {
	force, _ := strconv.ParseBool(c.Query("refresh"))
	return force
}

// bindAndValidate 解码 JSON 并执行表单规则；失败时已写响应
func bindAndValidate(c *gin.Context, v *validation.Validator, out interface{}, update bool) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}

	ctx := c.Request.Context()
	if update {
		ctx = validation.ForUpdate(ctx)
	}
	if err := v.Struct(ctx, out); err != nil {
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fe})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// respondError 统一的错误到状态码映射
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := classify(err)
	l := logger.WithTrace(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		l.Debug("Request rejected",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var apiErr *backend.APIError
	var fe validation.FieldErrors
	var denied *rbac.PermissionDeniedError
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest, fe.Error()
	case errors.As(err, &denied):
		return http.StatusForbidden, denied.Error()
	case errors.Is(err, store.ErrNotFound), errors.Is(err, report.ErrReportNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, store.ErrNoSession), errors.Is(err, store.ErrSessionExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, upload.ErrEmptyFile), errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrInvalidFolder), errors.Is(err, upload.ErrMissingKey):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable, "backend temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timeout"
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return http.StatusUnauthorized, "backend rejected credentials"
		case apiErr.Status >= 400 && apiErr.Status < 500:
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.Status)
			}
			return apiErr.Status, msg
		default:
			return http.StatusBadGateway, "backend error"
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "backend unreachable"
	}
	var sc util.StatusCoder
	if errors.As(err, &sc) {
		return http.StatusBadGateway, "storage error"
	}
	return http.StatusInternalServerError, "internal error"
}

// listResponse 列表响应；stale 表示后端失败时返回的旧数据
func listResponse[T any](c *gin.Context, log *zap.Logger, items []T, err error) {
	if err != nil {
		if len(items) == 0 {
			respondError(c, log, err)
			return
		}
		logger.WithTrace(c.Request.Context(), log).Warn("Serving stale collection", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"data": items, "count": len(items), "stale": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "count": len(items)})
}
