package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/model"
	"milletsmon/internal/store"
	"milletsmon/internal/validation"
)

type AuthHandler struct {
	auth      *store.AuthStore
	validator *validation.Validator
	logger    *zap.Logger
}

func NewAuthHandler(auth *store.AuthStore, v *validation.Validator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, validator: v, logger: logger}
}

// Login POST /auth/login
// 后端 token 只保存在服务端，客户端拿到的是门户签发的 token
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindAndValidate(c, h.validator, &req, false) {
		return
	}

	s, tok, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      tok,
		"expires_at": s.ExpiresAt,
		"user":       s.User,
	})
}

// Logout POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	s, ok := SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), s.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	s, ok := SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":       s.User,
		"expires_at": s.ExpiresAt,
	})
}
