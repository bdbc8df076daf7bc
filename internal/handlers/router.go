package handlers

import (
	"log/slog"

	"github.com/campusride/campusride-backend/internal/middleware"
	"github.com/campusride/campusride-backend/internal/repository"
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies is everything the HTTP layer is wired to.
type Dependencies struct {
	Rides         *services.RideService
	Notifications *services.NotificationService
	Matcher       *services.Matcher
	Users         repository.UserDirectory
	Hub           *services.Hub
	Logger        *slog.Logger
	JWTSecret     string
	CORSOrigins   []string
}

func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recover(d.Logger), middleware.RequestID(), middleware.Observability(d.Logger))

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = d.CORSOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "wsClients": d.Hub.GetConnectedClients()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(d.JWTSecret))
	{
		// WebSocket connection
		api.GET("/ws", WebSocketHandler(d.Hub))

		rides := api.Group("/rides")
		{
			rides.POST("/offer", CreateOffer(d.Rides))
			rides.POST("/recurring", CreateRecurringOffers(d.Rides))
			rides.GET("/mine", ListMyRides(d.Rides))
			rides.GET("/search", SearchRides(d.Rides))
			rides.POST("/request", RequestSeat(d.Rides))
			rides.POST("/confirm", ConfirmRequest(d.Rides))
			rides.POST("/deny", DenyRequest(d.Rides))
			rides.POST("/aimatch", AIMatch(d.Matcher))
			rides.GET("/aistream", AIStream(d.Matcher, d.Logger))
			rides.GET("/:id", GetRide(d.Rides))
			rides.PATCH("/:id/eta", UpdateEta(d.Rides))
			rides.PATCH("/:id/cancel", CancelRide(d.Rides))
			rides.PATCH("/:id/complete", CompleteRide(d.Rides))
			rides.POST("/:id/rate", RateRide(d.Rides))
			rides.DELETE("/:id", DeleteRide(d.Rides))
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", GetNotifications(d.Notifications))
			notifications.GET("/unread-count", GetUnreadCount(d.Notifications))
			notifications.PATCH("/mark-all-read", MarkAllRead(d.Notifications))
			notifications.PATCH("/:id/read", MarkNotificationRead(d.Notifications))
			notifications.DELETE("/:id", DeleteNotification(d.Notifications))
			notifications.POST("/cleanup", CleanupNotifications(d.Notifications))
		}

		users := api.Group("/users")
		{
			users.GET("/profile", GetProfile(d.Users))
			users.POST("/status", UpdateStatus(d.Notifications))
		}
		api.POST("/sos", SendSOS(d.Notifications))
	}

	return r
}
