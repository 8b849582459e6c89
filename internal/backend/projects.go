package backend

import (
	"context"
	"net/http"
	"net/url"

	"milletsmon/internal/model"
	"milletsmon/pkg/rbac"
)

// ProjectsEndpoint 按角色选择项目列表接口：
// 访客 -> /api/public/projects，管理员 -> /api/projects，其他 -> /api/projects/user/{id}
func ProjectsEndpoint(id Identity) (path, route string) {
	switch {
	case id.Anonymous():
		return "/api/public/projects", "/api/public/projects"
	case rbac.IsAdmin(id.Role):
		return "/api/projects", "/api/projects"
	default:
		return "/api/projects/user/" + url.PathEscape(id.UserID), "/api/projects/user/:id"
	}
}

// ListProjects 拉取调用者可见的项目
func (c *Client) ListProjects(ctx context.Context, id Identity) ([]model.Project, error) {
	path, route := ProjectsEndpoint(id)
	projects := []model.Project{}
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   path,
		route:  route,
		token:  id.Token,
		out:    &projects,
	})
	return projects, err
}

func (c *Client) CreateProject(ctx context.Context, token string, p model.Project) (*model.Project, error) {
	var created model.Project
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/projects",
		route:  "/api/projects",
		token:  token,
		body:   p,
		out:    &created,
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateProject(ctx context.Context, token string, p model.Project) (*model.Project, error) {
	var updated model.Project
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/api/projects/" + url.PathEscape(p.ID),
		route:  "/api/projects/:id",
		token:  token,
		body:   p,
		out:    &updated,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteProject(ctx context.Context, token, id string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/api/projects/" + url.PathEscape(id),
		route:  "/api/projects/:id",
		token:  token,
	})
}
