package handlers

import (
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler joins the caller to their user_{id} room.
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		hub.Serve(c.Writer, c.Request, userID)
	}
}
