package handlers

import (
	"strconv"

	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetNotifications pages through the caller's notifications, newest first.
func GetNotifications(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		filter := services.NotificationFilter{
			Category: c.Query("category"),
			Priority: c.Query("priority"),
		}
		var err error
		if v := c.Query("limit"); v != "" {
			if filter.Limit, err = strconv.Atoi(v); err != nil {
				badRequest(c, "limit must be a number")
				return
			}
		}
		if v := c.Query("offset"); v != "" {
			if filter.Offset, err = strconv.Atoi(v); err != nil {
				badRequest(c, "offset must be a number")
				return
			}
		}
		if v := c.Query("isRead"); v != "" {
			read, err := strconv.ParseBool(v)
			if err != nil {
				badRequest(c, "isRead must be true or false")
				return
			}
			filter.IsRead = &read
		}

		page, err := notifier.GetUserNotifications(c.Request.Context(), userID, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, page)
	}
}

func GetUnreadCount(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		count, err := notifier.GetUnreadCount(c.Request.Context(), userID, c.Query("category"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"count": count})
	}
}

func MarkNotificationRead(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		n, err := notifier.MarkAsRead(c.Request.Context(), id, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, n)
	}
}

// MarkAllRead accepts an optional ?category= to limit the update.
func MarkAllRead(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		updated, err := notifier.MarkAllAsRead(c.Request.Context(), userID, c.Query("category"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"updated": updated})
	}
}

func DeleteNotification(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := notifier.DeleteNotification(c.Request.Context(), id, userID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Notification deleted"})
	}
}

// CleanupNotifications removes ride notifications whose ride is gone.
func CleanupNotifications(notifier *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := notifier.CleanupOrphaned(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"deleted": deleted})
	}
}
