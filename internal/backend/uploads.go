package backend

import (
	"context"
	"net/http"
	"net/url"

	"milletsmon/internal/model"
)

// SignUpload POST /api/uploads/signed-url
func (c *Client) SignUpload(ctx context.Context, token string, req model.UploadRequest) (*model.SignedUpload, error) {
	var signed model.SignedUpload
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/uploads/signed-url",
		route:  "/api/uploads/signed-url",
		token:  token,
		body:   req,
		out:    &signed,
	})
	if err != nil {
		return nil, err
	}
	return &signed, nil
}

// DeleteObject DELETE /api/uploads/{key}；key 可能包含 "/"，整体转义
func (c *Client) DeleteObject(ctx context.Context, token, key string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/api/uploads/" + url.PathEscape(key),
		route:  "/api/uploads/:key",
		token:  token,
	})
}
