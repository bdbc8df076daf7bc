package handlers

import (
	"github.com/campusride/campusride-backend/internal/repository"
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetProfile retrieves the caller's profile from the user directory.
func GetProfile(users repository.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		found, err := users.Users(c.Request.Context(), []uint{userID})
		if err != nil {
			respondError(c, err)
			return
		}
		user, ok := found[userID]
		if !ok {
			c.JSON(404, gin.H{"error": "User not found", "kind": services.KindNotFound})
			return
		}

		c.JSON(200, gin.H{
			"id":     user.ID,
			"name":   user.Name,
			"email":  user.Email,
			"gender": user.Gender,
		})
	}
}
