package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *AuthHandler
	Reports    *ReportHandler
	Components *ComponentHandler
	Schedules  *ScheduleHandler
	Exports    *ExportHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts the API under prefix. Everything except login,
// health, metrics and token downloads sits behind the auth middleware.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/download/:token", h.Exports.Download)

	protected := api.Group("")
	protected.Use(auth)

	protected.GET("/auth/me", h.Auth.Me)

	protected.POST("/reports", h.Reports.Create)
	protected.GET("/reports", h.Reports.List)
	protected.POST("/reports/import", h.Reports.Import)
	protected.GET("/reports/:id", h.Reports.Get)
	protected.PATCH("/reports/:id", h.Reports.Update)
	protected.DELETE("/reports/:id", h.Reports.Delete)
	protected.POST("/reports/:id/duplicate", h.Reports.Duplicate)
	protected.POST("/reports/:id/execute", h.Reports.Execute)
	protected.GET("/reports/:id/export", h.Reports.Export)
	protected.GET("/reports/:id/audit", h.Reports.Audit)
	protected.POST("/reports/:id/artifact", h.Exports.Export)

	protected.POST("/reports/:id/components", h.Components.Add)
	protected.DELETE("/reports/:id/components/:kind/:instanceId", h.Components.Remove)
	protected.GET("/reports/:id/plugins/:kind", h.Components.Plugins)

	protected.POST("/reports/:id/schedules", h.Schedules.Create)
	protected.GET("/reports/:id/schedules", h.Schedules.List)
	protected.DELETE("/schedules/:scheduleId", h.Schedules.Delete)
	protected.POST("/schedules/:scheduleId/run", h.Schedules.RunNow)

	protected.GET("/exports/formats", h.Exports.Formats)
}
