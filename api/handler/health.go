package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/session"
)

// Health returns a handler for GET /api/v1/health.
func Health(sm *session.Manager, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         "healthy",
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: sm.ActiveSessions(),
			Version:        "0.1.0",
		})
	}
}
