package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tejasvajaitly/linkedin-scraper-api/api/handler"
	"github.com/tejasvajaitly/linkedin-scraper-api/api/middleware"
	"github.com/tejasvajaitly/linkedin-scraper-api/cache"
	"github.com/tejasvajaitly/linkedin-scraper-api/config"
	"github.com/tejasvajaitly/linkedin-scraper-api/harvest"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(h *harvest.Harvester, sm *session.Manager, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sm, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Harvest — streaming (SSE) and synchronous variants.
	protected.POST("/harvest", handler.Harvest(h))
	protected.POST("/harvest/sync", handler.HarvestSync(h, cc))

	return r
}
