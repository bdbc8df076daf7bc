package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateOffer publishes a ride offer owned by the caller.
func CreateOffer(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			OwnerID        *uint              `json:"ownerId"`
			DepartureTime  time.Time          `json:"departureTime" binding:"required"`
			StartLocation  string             `json:"startLocation" binding:"required"`
			EndLocation    string             `json:"endLocation" binding:"required"`
			AvailableSeats int                `json:"availableSeats"`
			Recurring      *models.Recurrence `json:"recurring"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}
		if input.OwnerID != nil && *input.OwnerID != userID {
			c.JSON(403, gin.H{"error": "cannot create a ride for another user", "kind": services.KindForbidden})
			return
		}

		ride, err := engine.CreateOffer(c.Request.Context(), services.CreateOfferInput{
			OwnerID:        userID,
			DepartureTime:  input.DepartureTime,
			StartLocation:  input.StartLocation,
			EndLocation:    input.EndLocation,
			AvailableSeats: input.AvailableSeats,
			Recurring:      input.Recurring,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, ride)
	}
}

// CreateRecurringOffers expands a weekly schedule into individual offers.
func CreateRecurringOffers(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			StartLocation  string `json:"startLocation" binding:"required"`
			EndLocation    string `json:"endLocation" binding:"required"`
			AvailableSeats int    `json:"availableSeats"`
			Recurring      struct {
				Days      []string `json:"days" binding:"required"`
				Frequency string   `json:"frequency"`
				Hour      *int     `json:"hour"`
				Minute    *int     `json:"minute"`
			} `json:"recurring" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		result, err := engine.CreateRecurringOffers(c.Request.Context(), services.RecurringInput{
			OwnerID:        userID,
			StartLocation:  input.StartLocation,
			EndLocation:    input.EndLocation,
			AvailableSeats: input.AvailableSeats,
			Days:           input.Recurring.Days,
			Frequency:      input.Recurring.Frequency,
			Hour:           input.Recurring.Hour,
			Minute:         input.Recurring.Minute,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(201, result)
	}
}

func GetRide(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}
		ride, err := engine.GetRide(c.Request.Context(), rideID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, ride)
	}
}

// ListMyRides returns rides the caller owns or has a seat request on.
func ListMyRides(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rides, err := engine.ListOwnRides(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, rides)
	}
}

func SearchRides(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		departure, err := time.Parse(time.RFC3339, c.Query("departureTime"))
		if err != nil {
			badRequest(c, "departureTime must be RFC3339")
			return
		}
		rides, err := engine.SearchRides(c.Request.Context(), services.SearchInput{
			DepartureTime: departure,
			StartLocation: c.Query("startLocation"),
			EndLocation:   c.Query("endLocation"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, rides)
	}
}

func RequestSeat(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			RideID    uint `json:"rideId" binding:"required"`
			SeatCount int  `json:"seatCount"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}
		if input.SeatCount == 0 {
			input.SeatCount = 1
		}

		ride, err := engine.RequestSeat(c.Request.Context(), input.RideID, userID, input.SeatCount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func ConfirmRequest(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			RideID    uint   `json:"rideId" binding:"required"`
			UserID    uint   `json:"userId"`
			RequestID string `json:"requestId"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		ride, err := engine.ConfirmRequest(c.Request.Context(), input.RideID, userID, services.ConfirmTarget{
			UserID:    input.UserID,
			RequestID: input.RequestID,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func DenyRequest(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}

		var input struct {
			RideID uint `json:"rideId" binding:"required"`
			UserID uint `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		ride, err := engine.DenyRequest(c.Request.Context(), input.RideID, userID, input.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func UpdateEta(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			NewEta string `json:"newEta" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		if _, err := engine.UpdateEta(c.Request.Context(), rideID, userID, input.NewEta); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "ETA updated"})
	}
}

func CancelRide(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}

		ride, err := engine.CancelRide(c.Request.Context(), rideID, userID, input.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func CompleteRide(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ride, err := engine.CompleteRide(c.Request.Context(), rideID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func RateRide(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			RiderID  uint   `json:"riderId" binding:"required"`
			Score    int    `json:"score" binding:"required"`
			Comment  string `json:"comment"`
			Category string `json:"category"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		ride, err := engine.RateRide(c.Request.Context(), rideID, userID, services.RatingInput{
			RiderID:  input.RiderID,
			Score:    input.Score,
			Comment:  input.Comment,
			Category: input.Category,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"ride": ride})
	}
}

func DeleteRide(engine *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}

		if err := engine.DeleteRide(c.Request.Context(), rideID, userID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Ride deleted successfully"})
	}
}
