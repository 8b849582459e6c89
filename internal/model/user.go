package model

import "time"

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	District string `json:"district,omitempty"`
}

func (u User) EntityID() string { return u.ID }

// Session 门户端会话：后端 token 只保存在服务端
type Session struct {
	ID            string    `json:"id"`
	BackendToken  string    `json:"backend_token"`
	User          User      `json:"user"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	UserCheckedAt time.Time `json:"user_checked_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
