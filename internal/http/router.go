package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/swifttiger/backend/internal/config"
	"github.com/swifttiger/backend/internal/http/handlers"
	"github.com/swifttiger/backend/internal/http/middleware"
	"github.com/swifttiger/backend/internal/models"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/swifttiger/backend/docs"
)

// Router wires the HTTP surface. Role checks live here; row-level
// checks (a technician touching only their own jobs and routes) live in
// the handlers.
func Router(cfg config.Config, h *handlers.Handler, rl *middleware.RateLimiter) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Logger))
	r.Use(middleware.Prometheus())
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.ClientURL == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.ClientURL}
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", middleware.MetricsHandler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")
	api.Use(rl.Middleware())

	auth := api.Group("/auth")
	{
		auth.POST("/register", rl.Sensitive(5), h.Register)
		auth.POST("/login", rl.Sensitive(10), h.Login)
		auth.POST("/refresh", rl.Sensitive(20), h.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(h.TokenMaker))

	// the websocket route stays outside the timeout group; its
	// connections are supposed to outlive any request deadline
	authed.GET("/ws", h.ServeWS)

	timed := authed.Group("")
	timed.Use(middleware.Timeout(cfg.RequestTimeout))

	{
		timed.POST("/auth/logout", h.Logout)
		timed.POST("/auth/change-password", h.ChangePassword)
		timed.GET("/auth/profile", h.Profile)
		timed.PUT("/auth/profile", h.UpdateProfile)
		timed.GET("/maps-config", h.MapsConfig)

		// technicians are pinned to their own rows inside these handlers
		timed.GET("/jobs", h.JobsList)
		timed.GET("/jobs/:id", h.JobGet)
		timed.PATCH("/jobs/:id/status", h.JobStatus)
		timed.POST("/jobs/:id/attachments", h.AttachmentUpload)
		timed.GET("/jobs/:id/attachments", h.AttachmentsList)
		timed.DELETE("/jobs/:id/attachments/:attachment_id", h.AttachmentDelete)
		timed.GET("/routes/assignments", h.RouteAssignments)
		timed.GET("/routes/:id", h.RouteGet)
	}

	admin := timed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", h.UsersList)
		admin.POST("/users", h.UserCreate)
		admin.GET("/users/:id", h.UserGet)
		admin.PUT("/users/:id", h.UserUpdate)
		admin.DELETE("/users/:id", h.UserDelete)
		admin.GET("/logs", h.LogsList)
	}

	reporting := timed.Group("")
	reporting.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleManager))
	{
		reporting.GET("/jobs/export", h.JobsExport)
	}

	dispatch := timed.Group("")
	dispatch.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleManager, models.RoleDispatcher))
	{
		dispatch.GET("/technicians", h.TechniciansList)

		dispatch.GET("/customers", h.CustomersList)
		dispatch.POST("/customers", h.CustomerCreate)
		dispatch.GET("/customers/:id", h.CustomerGet)
		dispatch.PUT("/customers/:id", h.CustomerUpdate)
		dispatch.DELETE("/customers/:id", h.CustomerDelete)
		dispatch.POST("/customers/:id/geocode", h.CustomerGeocode)
		dispatch.POST("/customers/import", h.CustomersImport)

		dispatch.POST("/jobs", h.JobCreate)
		dispatch.PUT("/jobs/:id", h.JobUpdate)
		dispatch.DELETE("/jobs/:id", h.JobDelete)

		dispatch.POST("/routes/optimize", h.RouteOptimize)
		dispatch.POST("/routes/plan", h.RoutePlan)
		dispatch.POST("/routes", h.RouteCreate)
		dispatch.DELETE("/routes/:id", h.RouteDelete)

		dispatch.GET("/locations", h.LocationsList)
	}

	field := timed.Group("")
	field.Use(middleware.RequireRoles(models.RoleTechnician))
	{
		field.POST("/locations", h.LocationPing)
	}

	return r
}
