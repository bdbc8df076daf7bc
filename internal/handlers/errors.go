package handlers

import (
	"errors"
	"strconv"

	"github.com/campusride/campusride-backend/internal/middleware"
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindCapacityExceeded:
		return 400
	case services.KindForbidden:
		return 403
	case services.KindNotFound:
		return 404
	case services.KindConflict:
		return 409
	default:
		return 500
	}
}

// respondError writes {"error","kind"}. Unknown errors are attached to the
// context for the request logger and never echoed to the client.
func respondError(c *gin.Context, err error) {
	var e *services.Error
	if errors.As(err, &e) {
		c.JSON(statusFor(e.Kind), gin.H{"error": e.Message, "kind": e.Kind})
		return
	}
	_ = c.Error(err)
	c.JSON(500, gin.H{"error": "internal error", "kind": "internal"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(400, gin.H{"error": msg, "kind": services.KindValidation})
}

// callerID returns the authenticated user id or writes 401.
func callerID(c *gin.Context) (uint, bool) {
	id, ok := middleware.Identity(c)
	if !ok || id.ID == 0 {
		c.AbortWithStatusJSON(401, gin.H{"error": "authentication required", "kind": "unauthorized"})
		return 0, false
	}
	return id.ID, true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
