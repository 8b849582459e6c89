package backend

import (
	"context"
	"net/http"
	"net/url"

	"milletsmon/internal/model"
)

// Go 方法不能带类型参数，通用资源 CRUD 以函数形式提供。

// List GET /api/{resource}
func List[T any](ctx context.Context, c *Client, resource, token string) ([]T, error) {
	items := []T{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/" + resource,
		route:  "/api/" + resource,
		token:  token,
		out:    &items,
	})
	return items, err
}

// ListPublic GET /api/public/{resource}（无需登录）
func ListPublic[T any](ctx context.Context, c *Client, resource string) ([]T, error) {
	items := []T{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/public/" + resource,
		route:  "/api/public/" + resource,
		out:    &items,
	})
	return items, err
}

// Create POST /api/{resource}
func Create[T any](ctx context.Context, c *Client, resource, token string, item T) (*T, error) {
	var created T
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/" + resource,
		route:  "/api/" + resource,
		token:  token,
		body:   item,
		out:    &created,
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update PUT /api/{resource}/{id}
func Update[T any](ctx context.Context, c *Client, resource, token, id string, item T) (*T, error) {
	var updated T
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/" + resource + "/" + url.PathEscape(id),
		route:  "/api/" + resource + "/:id",
		token:  token,
		body:   item,
		out:    &updated,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete DELETE /api/{resource}/{id}
func (c *Client) Delete(ctx context.Context, resource, token, id string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/api/" + resource + "/" + url.PathEscape(id),
		route:  "/api/" + resource + "/:id",
		token:  token,
	})
}

// ListCategories GET /api/categories
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	items := []model.Category{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/categories",
		route:  "/api/categories",
		out:    &items,
	})
	return items, err
}
