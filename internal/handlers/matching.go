package handlers

import (
	"log/slog"
	"time"

	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// AIMatch ranks pending rides against the posted trip.
func AIMatch(matcher *services.Matcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			StartLocation string    `json:"startLocation"`
			EndLocation   string    `json:"endLocation"`
			DepartureTime time.Time `json:"departureTime" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		list, err := matcher.Match(c.Request.Context(), services.MatchRequest{
			StartLocation: input.StartLocation,
			EndLocation:   input.EndLocation,
			DepartureTime: input.DepartureTime,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

// AIStream holds a server-sent event stream open and sends a "matches"
// event with the fresh ranking after every ride change. Closing the
// connection cancels the ride-change subscription.
func AIStream(matcher *services.Matcher, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		departure, err := time.Parse(time.RFC3339, c.Query("departureTime"))
		if err != nil {
			badRequest(c, "departureTime must be RFC3339")
			return
		}
		req := services.MatchRequest{
			StartLocation: c.Query("startLocation"),
			EndLocation:   c.Query("endLocation"),
			DepartureTime: departure,
		}

		ctx := c.Request.Context()
		started := false
		err = matcher.Stream(ctx, req, func(list []services.MatchCandidate) error {
			if !started {
				started = true
				c.Header("Content-Type", "text/event-stream")
				c.Header("Cache-Control", "no-cache")
				c.Header("Connection", "keep-alive")
				c.Header("X-Accel-Buffering", "no")
			}
			c.SSEvent("matches", list)
			c.Writer.Flush()
			return ctx.Err()
		})
		if err == nil || ctx.Err() != nil {
			return
		}
		if !started {
			respondError(c, err)
			return
		}
		logger.Warn("match stream ended", "error", err)
	}
}
