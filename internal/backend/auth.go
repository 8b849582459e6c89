package backend

import (
	"context"
	"net/http"
	"net/url"

	"milletsmon/internal/model"
)

// LoginResult 后端登录结果
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login POST /api/auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/login",
		route:  "/api/auth/login",
		body:   map[string]string{"email": email, "password": password},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Me GET /api/auth/me
func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	var u model.User
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/auth/me",
		route:  "/api/auth/me",
		token:  token,
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers GET /api/users（仅管理员）
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	users := []model.User{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/users",
		route:  "/api/users",
		token:  token,
		out:    &users,
	})
	return users, err
}

// GetUser GET /api/users/{id}
func (c *Client) GetUser(ctx context.Context, token, id string) (*model.User, error) {
	var u model.User
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/users/" + url.PathEscape(id),
		route:  "/api/users/:id",
		token:  token,
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}
