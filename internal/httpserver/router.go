package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"milletsmon/internal/handler"
	"milletsmon/internal/model"
	"milletsmon/internal/store"
	"milletsmon/pkg/otel"
	"milletsmon/pkg/rbac"
	"milletsmon/pkg/trace"
)

// CRUD 资源处理器（handler.ResourceHandler 实现）
type CRUD interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// ReadinessCheck /readyz 依次执行的依赖检查
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers 路由需要的全部处理器
type Handlers struct {
	Auth       *handler.AuthHandler
	Projects   *handler.ProjectHandler
	Public     *handler.PublicHandler
	Activities map[model.Kind]CRUD
	Content    map[string]CRUD
	Categories *handler.CategoryHandler
	Dashboard  *handler.DashboardHandler
	Uploads    *handler.UploadHandler
	Reports    *handler.ReportHandler
	Admin      *handler.AdminHandler
}

func NewRouter(h Handlers, auth *store.AuthStore, logger *zap.Logger, checks ...ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(trace.GinMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for _, rc := range checks {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	public := r.Group("/public")
	{
		public.GET("/projects", h.Public.Projects)
		public.GET("/events", h.Public.Events)
		public.GET("/gallery", h.Public.Gallery)
		public.GET("/publications", h.Public.Publications)
		public.GET("/stats", h.Public.Stats)
	}

	r.POST("/auth/login", h.Auth.Login)
	authed := r.Group("/auth")
	authed.Use(AuthMiddleware(auth))
	{
		authed.POST("/logout", h.Auth.Logout)
		authed.GET("/me", h.Auth.Me)
	}

	// Protected
	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(auth))
	{
		registerCRUD(admin.Group("/projects"), h.Projects,
			rbac.PermissionReadProject, rbac.PermissionWriteProject, rbac.PermissionDeleteProject)

		for _, kind := range model.ActivityKinds {
			if ah, ok := h.Activities[kind]; ok {
				registerCRUD(admin.Group("/activities/"+string(kind)), ah,
					rbac.PermissionReadActivity, rbac.PermissionWriteActivity, rbac.PermissionDeleteActivity)
			}
		}
		for _, name := range []string{model.ResourceEvents, model.ResourceGallery, model.ResourcePublications} {
			if ch, ok := h.Content[name]; ok {
				registerCRUD(admin.Group("/"+name), ch,
					rbac.PermissionReadActivity, rbac.PermissionWriteActivity, rbac.PermissionDeleteActivity)
			}
		}

		admin.GET("/categories", RequirePermission(rbac.PermissionReadActivity), h.Categories.List)
		admin.GET("/dashboard", RequirePermission(rbac.PermissionReadActivity), h.Dashboard.Get)

		admin.POST("/uploads", RequirePermission(rbac.PermissionUploadFile), h.Uploads.Upload)
		admin.DELETE("/uploads/*key", RequirePermission(rbac.PermissionDeleteFile), h.Uploads.Delete)

		reports := admin.Group("/reports", RequirePermission(rbac.PermissionGenerateReport))
		reports.POST("", h.Reports.Create)
		reports.GET("", h.Reports.List)
		reports.GET("/:id", h.Reports.Get)
		reports.GET("/:id/csv", h.Reports.CSV)

		admin.GET("/users", RequirePermission(rbac.PermissionListUsers), h.Admin.Users)
		admin.GET("/users/:id", RequirePermission(rbac.PermissionListUsers), h.Admin.User)
		admin.GET("/cache", RequirePermission(rbac.PermissionRefreshCache), h.Admin.CacheState)
		admin.POST("/cache/refresh", RequirePermission(rbac.PermissionRefreshCache), h.Admin.RefreshCache)
	}

	return r
}

func registerCRUD(g *gin.RouterGroup, h CRUD, readPerm, writePerm, deletePerm string) {
	g.GET("", RequirePermission(readPerm), h.List)
	g.GET("/:id", RequirePermission(readPerm), h.Get)
	g.POST("", RequirePermission(writePerm), h.Create)
	g.PUT("/:id", RequirePermission(writePerm), h.Update)
	g.DELETE("/:id", RequirePermission(deletePerm), h.Delete)
}
