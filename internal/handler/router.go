package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/halcyon-intra/portal-events-api/internal/middleware"
	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/service"
	"github.com/halcyon-intra/portal-events-api/pkg/config"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Events    *EventHandler
	Admin     *AdminEventHandler
	Resources *ResourceHandler
	Metrics   *service.MetricsService
}

// RegisterRoutes mounts the API under cfg.APIPrefix. The public group is
// unauthenticated, the intranet group requires any valid token and the admin
// group requires the admin role.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, h Handlers) {
	api := r.Group(cfg.APIPrefix)

	public := api.Group("/events")
	{
		public.GET("", h.Events.ListPublic)
		public.GET("/:id", h.Events.GetPublic)
		public.POST("/:id/registrations", h.Events.RegisterPublic)
	}

	intranet := api.Group("/intranet", middleware.JWT(cfg.JWT.Secret))
	{
		intranet.GET("/events", h.Events.ListPrivate)
		intranet.GET("/events/:id", h.Events.GetPrivate)
		intranet.POST("/events/:id/registrations", h.Events.RegisterPrivate)
	}

	admin := api.Group("/admin", middleware.JWT(cfg.JWT.Secret), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/events", h.Admin.Create)
		admin.GET("/events", h.Admin.List)
		admin.GET("/events/:id", h.Admin.Get)
		admin.PUT("/events/:id", h.Admin.Update)
		admin.DELETE("/events/:id", h.Admin.Delete)
		admin.GET("/events/:id/registrations", h.Admin.Registrations)

		admin.GET("/resources", h.Resources.List)
		admin.POST("/resources", h.Resources.Create)
	}

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
}
