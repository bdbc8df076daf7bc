package handlers

import (
	"errors"

	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func UpdateStatus(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		notified, err := notifier.BroadcastStatusChange(c.Request.Context(), userID, input.Status)
		respondBroadcast(c, notified, err)
	}
}

// SendSOS alerts every accepted friend of the caller.
func SendSOS(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			Message  string `json:"message"`
			Location string `json:"location"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		notified, err := notifier.SendSOS(c.Request.Context(), userID, services.SOSAlert{
			Message:  input.Message,
			Location: input.Location,
		})
		respondBroadcast(c, notified, err)
	}
}

// respondBroadcast reports a partial broadcast as success with partial=true;
// the delivery error goes to the request log.
func respondBroadcast(c *gin.Context, notified int, err error) {
	switch {
	case errors.Is(err, services.ErrPartialBroadcast):
		_ = c.Error(err)
		c.JSON(200, gin.H{"notified": notified, "partial": true})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(200, gin.H{"notified": notified, "partial": false})
	}
}
