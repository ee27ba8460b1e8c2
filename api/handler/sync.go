package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tejasvajaitly/linkedin-scraper-api/cache"
	"github.com/tejasvajaitly/linkedin-scraper-api/harvest"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
	"github.com/tejasvajaitly/linkedin-scraper-api/webhook"
)

// HarvestSync returns a handler for POST /api/v1/harvest/sync, the
// non-streaming variant: it blocks until the harvest reaches a terminal
// outcome and returns the HarvestResult as plain JSON. 400 for invalid
// input, mapped error statuses for internal failure.
//
// Progress events are drained internally; callers that want them use the
// streaming endpoint instead.
func HarvestSync(h *harvest.Harvester, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.HarvestResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		cacheKey := cache.Key(req.URL, req.Mode, req.FailureMode)
		if cc != nil && req.MaxAgeMs > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				c.JSON(http.StatusOK, models.HarvestResponse{
					Success:     true,
					Result:      cached,
					CacheStatus: "hit",
				})
				return
			}
		}

		emitter := progress.New(64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range emitter.Events() {
			}
		}()

		result, err := h.Run(c.Request.Context(), &req, emitter)
		emitter.Close()
		<-done

		if err != nil {
			if req.WebhookURL != "" {
				webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
					Type: "harvest.failed",
					URL:  req.URL,
					Data: toDetail(err),
				})
			}
			respondError(c, err)
			return
		}

		resp := models.HarvestResponse{Success: true, Result: result}
		if cc != nil && req.MaxAgeMs > 0 {
			cc.Set(cacheKey, result)
			resp.CacheStatus = "miss"
		}
		if req.WebhookURL != "" {
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
				Type: "harvest.completed",
				URL:  req.URL,
				Data: result,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a HarvestError to the correct HTTP status and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error) {
	harvestErr, ok := err.(*models.HarvestError)
	if !ok {
		harvestErr = models.NewHarvestError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(harvestErr), models.HarvestResponse{
		Success: false,
		Error:   harvestErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.HarvestError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeNavigation:
		return http.StatusBadGateway
	case models.ErrCodeContentTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized, models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
