package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/model"
	"milletsmon/internal/store"
	"milletsmon/internal/validation"
	"milletsmon/pkg/logger"
)

type ProjectHandler struct {
	projects  *store.ProjectStore
	validator *validation.Validator
	logger    *zap.Logger
}

func NewProjectHandler(projects *store.ProjectStore, v *validation.Validator, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, validator: v, logger: logger}
}

// List GET /admin/projects 与 GET /public/projects；按调用者角色选择后端接口
func (h *ProjectHandler) List(c *gin.Context) {
	items, err := h.projects.List(c.Request.Context(), identity(c), forceRefresh(c))
	listResponse(c, h.logger, items, err)
}

// Get GET /admin/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// Create POST /admin/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var p model.Project
	if !bindAndValidate(c, h.validator, &p, false) {
		return
	}

	id := identity(c)
	p.ID = ""
	p.CreatedBy = id.UserID
	created, err := h.projects.Create(c.Request.Context(), id, p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Project created",
		zap.String("project_id", created.ID),
		zap.String("user_id", id.UserID))
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// Update PUT /admin/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var p model.Project
	if !bindAndValidate(c, h.validator, &p, true) {
		return
	}

	p.ID = c.Param("id")
	updated, err := h.projects.Update(c.Request.Context(), identity(c), p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// Delete DELETE /admin/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id := identity(c)
	projectID := c.Param("id")
	if err := h.projects.Delete(c.Request.Context(), id, projectID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Project deleted",
		zap.String("project_id", projectID),
		zap.String("user_id", id.UserID))
	c.Status(http.StatusNoContent)
}
