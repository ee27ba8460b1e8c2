package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tejasvajaitly/linkedin-scraper-api/harvest"
	"github.com/tejasvajaitly/linkedin-scraper-api/models"
	"github.com/tejasvajaitly/linkedin-scraper-api/progress"
)

// Harvest returns a handler for POST /api/v1/harvest.
//
// The response is a Server-Sent Events stream: one "progress" event per
// ProgressEvent in emission order, then exactly one terminal event — either
// "result" carrying the HarvestResult or "error" carrying an ErrorDetail.
// Input validation fails with a plain 400 before any resource is acquired.
func Harvest(h *harvest.Harvester) gin.HandlerFunc {
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

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Writer.Flush()

		emitter := progress.New(16)
		resultCh := make(chan *models.HarvestResult, 1)
		errCh := make(chan error, 1)

		go func() {
			defer emitter.Close()
			result, err := h.Run(c.Request.Context(), &req, emitter)
			if err != nil {
				errCh <- err
				return
			}
			resultCh <- result
		}()

		// Relay until the pipeline closes the stream; the channel drains
		// fully before the terminal event, preserving emission order.
		for ev := range emitter.Events() {
			c.SSEvent("progress", ev)
			c.Writer.Flush()
		}

		select {
		case result := <-resultCh:
			c.SSEvent("result", result)
		case err := <-errCh:
			c.SSEvent("error", toDetail(err))
		}
		c.Writer.Flush()
	}
}

// toDetail converts any error into an API-facing ErrorDetail.
func toDetail(err error) *models.ErrorDetail {
	if he, ok := err.(*models.HarvestError); ok {
		return he.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
