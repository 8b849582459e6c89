package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milletsmon/internal/model"
	"milletsmon/internal/report"
	"milletsmon/internal/validation"
	"milletsmon/pkg/logger"
)

// ReportRequest POST /admin/reports 请求体
type ReportRequest struct {
	Title    string    `json:"title" validate:"required,min=3,max=200"`
	District string    `json:"district" validate:"max=100"`
	Kind     string    `json:"kind" validate:"omitempty,oneof=trainings awareness-programs flds infrastructure input-distributions"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

type ReportHandler struct {
	builder   *report.Builder
	repo      *report.Repository
	validator *validation.Validator
	logger    *zap.Logger
}

func NewReportHandler(builder *report.Builder, repo *report.Repository, v *validation.Validator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{builder: builder, repo: repo, validator: v, logger: logger}
}

// Create POST /admin/reports 生成并保存报表
func (h *ReportHandler) Create(c *gin.Context) {
	var req ReportRequest
	if !bindAndValidate(c, h.validator, &req, false) {
		return
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validation.FieldErrors{"to": "to must not be before from"}})
		return
	}

	ctx := c.Request.Context()
	s, _ := SessionFrom(c)
	generatedBy := ""
	if s != nil {
		generatedBy = s.User.Email
	}

	rep, err := h.builder.Build(ctx, identity(c), req.Title, generatedBy, report.Filter{
		District: req.District,
		Kind:     model.Kind(req.Kind),
		From:     req.From,
		To:       req.To,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.repo.Save(ctx, rep); err != nil {
		respondError(c, h.logger, fmt.Errorf("save report: %w", err))
		return
	}

	logger.WithTrace(ctx, h.logger).Info("Report generated",
		zap.String("report_id", rep.ID),
		zap.Int("rows", len(rep.Rows)),
		zap.String("generated_by", generatedBy))
	c.JSON(http.StatusCreated, gin.H{"data": rep})
}

// List GET /admin/reports?limit=&offset=
func (h *ReportHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	reports, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   reports,
		"count":  len(reports),
		"limit":  limit,
		"offset": offset,
	})
}

// Get GET /admin/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	rep, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rep})
}

// CSV GET /admin/reports/:id/csv
func (h *ReportHandler) CSV(c *gin.Context) {
	rep, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%s.csv"`, rep.ID))
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, rep); err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("Failed to write report csv",
			zap.String("report_id", rep.ID),
			zap.Error(err))
	}
}
