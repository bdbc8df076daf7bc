package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultRecurringHorizonDays = 14
	DefaultSearchWindow         = 30 * time.Minute
	defaultRecurringHour        = 8

	cleanupTimeout = 30 * time.Second
)

// Notifier is the part of the dispatch service the lifecycle engine drives.
type Notifier interface {
	Notify(ctx context.Context, events []NotificationEvent) ([]models.Notification, error)
	CleanupOrphaned(ctx context.Context) (int, error)
}

type RideOptions struct {
	RecurringHorizonDays int
	SearchWindow         time.Duration
	Now                  func() time.Time
}

// RideService is the ride lifecycle engine. Every seat mutation runs inside
// RideStore.Mutate, so capacity is re-checked against the committed
// confirmations of the moment.
type RideService struct {
	rides        repository.RideStore
	notifier     Notifier
	events       EventSink
	logger       *slog.Logger
	now          func() time.Time
	horizonDays  int
	searchWindow time.Duration
	cleanups     sync.WaitGroup

	cleanupMu      sync.Mutex
	cleanupRunning bool
	cleanupPending bool
}

func NewRideService(rides repository.RideStore, notifier Notifier, events EventSink, logger *slog.Logger, opts RideOptions) *RideService {
	if opts.RecurringHorizonDays <= 0 {
		opts.RecurringHorizonDays = DefaultRecurringHorizonDays
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = DefaultSearchWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if events == nil {
		events = MultiSink{}
	}
	return &RideService{
		rides:        rides,
		notifier:     notifier,
		events:       events,
		logger:       logger,
		now:          opts.Now,
		horizonDays:  opts.RecurringHorizonDays,
		searchWindow: opts.SearchWindow,
	}
}

type CreateOfferInput struct {
	OwnerID        uint
	DepartureTime  time.Time
	StartLocation  string
	EndLocation    string
	AvailableSeats int
	Recurring      *models.Recurrence
}

func (s *RideService) CreateOffer(ctx context.Context, in CreateOfferInput) (*models.RideOffer, error) {
	ride, err := s.createOffer(ctx, in)
	observeOperation("create_offer", err)
	return ride, err
}

func (s *RideService) createOffer(ctx context.Context, in CreateOfferInput) (*models.RideOffer, error) {
	in.StartLocation = strings.TrimSpace(in.StartLocation)
	in.EndLocation = strings.TrimSpace(in.EndLocation)
	switch {
	case in.OwnerID == 0:
		return nil, validationError("ownerId is required")
	case in.DepartureTime.IsZero():
		return nil, validationError("departureTime is required")
	case in.StartLocation == "":
		return nil, validationError("startLocation is required")
	case in.EndLocation == "":
		return nil, validationError("endLocation is required")
	case in.AvailableSeats < 1:
		return nil, validationError("availableSeats must be at least 1")
	}

	ride := &models.RideOffer{
		OwnerID:         in.OwnerID,
		DepartureTime:   in.DepartureTime,
		StartLocation:   in.StartLocation,
		EndLocation:     in.EndLocation,
		AvailableSeats:  in.AvailableSeats,
		Status:          models.RideStatusPending,
		Recurring:       in.Recurring,
		RequestedRiders: []models.SeatRequest{},
		ConfirmedRiders: []models.Confirmation{},
		Ratings:         []models.Rating{},
		CreatedAt:       s.now(),
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	s.publish(ctx, ride, OpInsert, "offer_created", in.OwnerID)
	return ride, nil
}

type RecurringInput struct {
	OwnerID        uint
	StartLocation  string
	EndLocation    string
	AvailableSeats int
	Days           []string
	Frequency      string
	Hour           *int
	Minute         *int
}

type RecurringResult struct {
	Rides  []models.RideOffer `json:"rides"`
	Failed int                `json:"failed"`
}

// CreateRecurringOffers creates one independent offer for each day in the
// horizon, starting today, whose weekday is listed in Days. Offers that fail
// are counted and skipped; earlier ones stay created.
func (s *RideService) CreateRecurringOffers(ctx context.Context, in RecurringInput) (*RecurringResult, error) {
	switch {
	case in.OwnerID == 0:
		return nil, validationError("ownerId is required")
	case strings.TrimSpace(in.StartLocation) == "" || strings.TrimSpace(in.EndLocation) == "":
		return nil, validationError("startLocation and endLocation are required")
	case in.AvailableSeats < 0:
		return nil, validationError("availableSeats must not be negative; omit it or send 0 for one seat")
	case len(in.Days) == 0:
		return nil, validationError("recurring.days is required")
	}
	weekdays := make(map[time.Weekday]bool, len(in.Days))
	for _, d := range in.Days {
		wd, ok := parseWeekday(d)
		if !ok {
			return nil, validationError("unknown weekday %q", d)
		}
		weekdays[wd] = true
	}

	hour, minute := defaultRecurringHour, 0
	if in.Hour != nil {
		hour = *in.Hour
	}
	if in.Minute != nil {
		minute = *in.Minute
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, validationError("invalid departure time %02d:%02d", hour, minute)
	}
	if in.AvailableSeats == 0 {
		in.AvailableSeats = 1
	}
	frequency := in.Frequency
	if frequency == "" {
		frequency = "weekly"
	}

	today := s.now()
	result := &RecurringResult{Rides: []models.RideOffer{}}
	for i := 0; i < s.horizonDays; i++ {
		day := time.Date(today.Year(), today.Month(), today.Day()+i, hour, minute, 0, 0, today.Location())
		if !weekdays[day.Weekday()] {
			continue
		}
		ride, err := s.CreateOffer(ctx, CreateOfferInput{
			OwnerID:        in.OwnerID,
			DepartureTime:  day,
			StartLocation:  in.StartLocation,
			EndLocation:    in.EndLocation,
			AvailableSeats: in.AvailableSeats,
			Recurring: &models.Recurrence{
				Days:      in.Days,
				Frequency: frequency,
				Hour:      hour,
				Minute:    minute,
			},
		})
		if err != nil {
			s.logger.Warn("recurring offer skipped", "owner_id", in.OwnerID, "date", day.Format("2006-01-02"), "error", err)
			result.Failed++
			continue
		}
		result.Rides = append(result.Rides, *ride)
	}

	if len(result.Rides) == 0 && result.Failed > 0 {
		return result, validationError("no recurring rides could be created")
	}
	return result, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return 0, false
}

// RequestSeat appends a pending seat request for userID.
func (s *RideService) RequestSeat(ctx context.Context, rideID, userID uint, seatCount int) (*models.RideOffer, error) {
	if userID == 0 {
		return nil, validationError("userId is required")
	}
	if seatCount < 1 {
		return nil, validationError("seatCount must be at least 1")
	}

	var request models.SeatRequest
	ride, err := s.mutate(ctx, "request_seat", rideID, func(r *models.RideOffer) error {
		if r.OwnerID == userID {
			return forbidden("cannot request a seat on your own ride")
		}
		if r.Status.IsTerminal() {
			return conflict("ride is %s", r.Status)
		}
		if r.HasRequested(userID) {
			return conflict("seat already requested")
		}
		if r.IsConfirmed(userID) {
			return conflict("already confirmed on this ride")
		}
		if remaining := r.SeatsRemaining(); seatCount > remaining {
			return capacityExceeded(seatCount, remaining)
		}
		request = models.SeatRequest{
			RequestID:   uuid.NewString(),
			UserID:      userID,
			SeatCount:   seatCount,
			RequestedAt: s.now(),
		}
		r.RequestedRiders = append(r.RequestedRiders, request)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, []NotificationEvent{{
		RecipientID: ride.OwnerID,
		SenderID:    userID,
		Type:        models.NotificationRideRequest,
		Title:       "New ride request",
		Message:     fmt.Sprintf("A rider requested %d seat(s) from %s to %s", seatCount, ride.StartLocation, ride.EndLocation),
		Data: map[string]interface{}{
			"rideId":      ride.ID,
			"requestId":   request.RequestID,
			"requesterId": userID,
			"seatCount":   seatCount,
		},
	}})
	s.publish(ctx, ride, OpUpdate, "seat_requested", userID)
	return ride, nil
}

// ConfirmTarget names the pending request to confirm. Either field may be
// set; when both are set they must refer to the same request.
type ConfirmTarget struct {
	UserID    uint
	RequestID string
}

// ConfirmRequest moves a pending request into the confirmed list. Capacity
// is recomputed from the confirmations held under the ride lock.
func (s *RideService) ConfirmRequest(ctx context.Context, rideID, actorID uint, target ConfirmTarget) (*models.RideOffer, error) {
	if target.UserID == 0 && target.RequestID == "" {
		return nil, validationError("userId or requestId is required")
	}

	var confirmed models.Confirmation
	ride, err := s.mutate(ctx, "confirm_request", rideID, func(r *models.RideOffer) error {
		if r.OwnerID != actorID {
			return forbidden("only the ride owner can confirm requests")
		}
		if r.Status.IsTerminal() {
			return conflict("ride is %s", r.Status)
		}
		if target.UserID != 0 && r.IsConfirmed(target.UserID) {
			return conflict("user already confirmed")
		}
		idx, ok := r.FindRequest(target.UserID, target.RequestID)
		if !ok {
			return notFound("no matching pending request")
		}
		req := r.RequestedRiders[idx]
		if r.IsConfirmed(req.UserID) {
			return conflict("user already confirmed")
		}
		if remaining := r.SeatsRemaining(); req.SeatCount > remaining {
			return capacityExceeded(req.SeatCount, remaining)
		}

		confirmed = models.Confirmation{UserID: req.UserID, SeatCount: req.SeatCount, ConfirmedAt: s.now()}
		r.RequestedRiders = append(r.RequestedRiders[:idx:idx], r.RequestedRiders[idx+1:]...)
		r.ConfirmedRiders = append(r.ConfirmedRiders, confirmed)
		if r.Status == models.RideStatusPending {
			r.Status = models.RideStatusConfirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, []NotificationEvent{{
		RecipientID: confirmed.UserID,
		SenderID:    actorID,
		Type:        models.NotificationRideConfirmation,
		Title:       "Ride confirmed",
		Message:     fmt.Sprintf("Your %d seat(s) from %s to %s are confirmed", confirmed.SeatCount, ride.StartLocation, ride.EndLocation),
		Data:        map[string]interface{}{"rideId": ride.ID, "seatCount": confirmed.SeatCount},
	}})
	s.publish(ctx, ride, OpUpdate, "seat_confirmed", actorID)
	return ride, nil
}

// DenyRequest drops userID's pending request. Denying a request that does
// not exist succeeds without notifying anyone.
func (s *RideService) DenyRequest(ctx context.Context, rideID, actorID, userID uint) (*models.RideOffer, error) {
	if userID == 0 {
		return nil, validationError("userId is required")
	}

	removed := false
	ride, err := s.mutate(ctx, "deny_request", rideID, func(r *models.RideOffer) error {
		if r.OwnerID != actorID {
			return forbidden("only the ride owner can deny requests")
		}
		if idx, ok := r.FindRequest(userID, ""); ok {
			r.RequestedRiders = append(r.RequestedRiders[:idx:idx], r.RequestedRiders[idx+1:]...)
			removed = true
		}
		return nil
	})
	if err != nil || !removed {
		return ride, err
	}

	s.notify(ctx, []NotificationEvent{{
		RecipientID: userID,
		SenderID:    actorID,
		Type:        models.NotificationRideCancellation,
		Title:       "Ride request declined",
		Message:     fmt.Sprintf("Your request for the ride from %s to %s was declined", ride.StartLocation, ride.EndLocation),
		Data:        map[string]interface{}{"rideId": ride.ID, "denied": true},
	}})
	s.publish(ctx, ride, OpUpdate, "request_denied", actorID)
	return ride, nil
}

// CancelRide moves the ride to cancelled. Cancelling a cancelled ride is a
// no-op; cancelling a completed ride is a conflict.
func (s *RideService) CancelRide(ctx context.Context, rideID, actorID uint, reason string) (*models.RideOffer, error) {
	return s.finish(ctx, "cancel_ride", rideID, actorID, models.RideStatusCancelled, func(ride *models.RideOffer) (models.NotificationType, string, string, map[string]interface{}) {
		msg := fmt.Sprintf("The ride from %s to %s was cancelled", ride.StartLocation, ride.EndLocation)
		if reason = strings.TrimSpace(reason); reason != "" {
			msg += ": " + reason
		}
		return models.NotificationRideCancellation, "Ride cancelled", msg,
			map[string]interface{}{"rideId": ride.ID, "reason": reason, "cancelledBy": actorID}
	})
}

// CompleteRide moves the ride to completed. Completing a completed ride is a
// no-op; completing a cancelled ride is a conflict.
func (s *RideService) CompleteRide(ctx context.Context, rideID, actorID uint) (*models.RideOffer, error) {
	return s.finish(ctx, "complete_ride", rideID, actorID, models.RideStatusCompleted, func(ride *models.RideOffer) (models.NotificationType, string, string, map[string]interface{}) {
		return models.NotificationRideCompletion, "Ride completed",
			fmt.Sprintf("The ride from %s to %s is complete. Rate your trip!", ride.StartLocation, ride.EndLocation),
			map[string]interface{}{"rideId": ride.ID, "completedBy": actorID}
	})
}

type notificationBuilder func(ride *models.RideOffer) (models.NotificationType, string, string, map[string]interface{})

func (s *RideService) finish(ctx context.Context, op string, rideID, actorID uint, target models.RideStatus, build notificationBuilder) (*models.RideOffer, error) {
	changed := false
	ride, err := s.mutate(ctx, op, rideID, func(r *models.RideOffer) error {
		if !r.IsParticipant(actorID) {
			return forbidden("only the owner or a confirmed passenger can do this")
		}
		if r.Status == target {
			return nil
		}
		if r.Status.IsTerminal() {
			return conflict("ride is already %s", r.Status)
		}
		r.Status = target
		changed = true
		return nil
	})
	if err != nil || !changed {
		return ride, err
	}

	typ, title, message, data := build(ride)
	s.notify(ctx, s.participantEvents(ride, actorID, typ, title, message, data))
	s.publish(ctx, ride, OpUpdate, string(target), actorID)
	return ride, nil
}

// UpdateEta tells the other participants about a new ETA. The ride record is
// not modified.
func (s *RideService) UpdateEta(ctx context.Context, rideID, actorID uint, newEta string) (*models.RideOffer, error) {
	ride, err := s.updateEta(ctx, rideID, actorID, newEta)
	observeOperation("update_eta", err)
	return ride, err
}

func (s *RideService) updateEta(ctx context.Context, rideID, actorID uint, newEta string) (*models.RideOffer, error) {
	newEta = strings.TrimSpace(newEta)
	if newEta == "" {
		return nil, validationError("newEta is required")
	}
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(actorID) {
		return nil, forbidden("only the owner or a confirmed passenger can update the ETA")
	}

	s.notify(ctx, s.participantEvents(ride, actorID, models.NotificationEtaChange, "ETA updated",
		fmt.Sprintf("New ETA for the ride from %s to %s: %s", ride.StartLocation, ride.EndLocation, newEta),
		map[string]interface{}{"rideId": ride.ID, "eta": newEta, "updatedBy": actorID}))
	return ride, nil
}

// DeleteRide hard-deletes the ride and schedules orphaned notification
// cleanup in the background. Cleanup failures never fail the delete.
func (s *RideService) DeleteRide(ctx context.Context, rideID, actorID uint) error {
	err := s.deleteRide(ctx, rideID, actorID)
	observeOperation("delete_ride", err)
	return err
}

func (s *RideService) deleteRide(ctx context.Context, rideID, actorID uint) error {
	ride, err := s.getRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.OwnerID != actorID {
		return forbidden("only the ride owner can delete the ride")
	}
	if err := s.rides.Delete(ctx, rideID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("ride %d not found", rideID)
		}
		return fmt.Errorf("delete ride: %w", err)
	}

	s.publish(ctx, ride, OpDelete, "deleted", actorID)

	s.scheduleCleanup(ctx, rideID)
	return nil
}

// scheduleCleanup runs at most one orphan scan at a time. Deletes that land
// while a scan is running queue a single follow-up scan, so every delete is
// still covered by a scan that starts after it.
func (s *RideService) scheduleCleanup(ctx context.Context, rideID uint) {
	s.cleanupMu.Lock()
	if s.cleanupRunning {
		s.cleanupPending = true
		s.cleanupMu.Unlock()
		return
	}
	s.cleanupRunning = true
	s.cleanups.Add(1)
	s.cleanupMu.Unlock()

	base := context.WithoutCancel(ctx)
	go func() {
		defer s.cleanups.Done()
		for {
			s.cleanupOnce(base, rideID)

			s.cleanupMu.Lock()
			if !s.cleanupPending {
				s.cleanupRunning = false
				s.cleanupMu.Unlock()
				return
			}
			s.cleanupPending = false
			s.cleanupMu.Unlock()
		}
	}()
}

func (s *RideService) cleanupOnce(ctx context.Context, rideID uint) {
	cctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()
	n, err := s.notifier.CleanupOrphaned(cctx)
	if err != nil {
		s.logger.Warn("orphan cleanup failed", "ride_id", rideID, "error", err)
		return
	}
	s.logger.Info("orphan cleanup finished", "ride_id", rideID, "deleted", n)
}

// Wait blocks until background cleanups started by DeleteRide have finished.
func (s *RideService) Wait() {
	s.cleanups.Wait()
}

type RatingInput struct {
	RiderID  uint
	Score    int
	Comment  string
	Category string
}

// RateRide records raterID's feedback about another participant of a
// completed ride. Each rater rates a given rider once.
func (s *RideService) RateRide(ctx context.Context, rideID, raterID uint, in RatingInput) (*models.RideOffer, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, validationError("score must be between 1 and 5")
	}
	if in.RiderID == 0 {
		return nil, validationError("riderId is required")
	}

	ride, err := s.mutate(ctx, "rate_ride", rideID, func(r *models.RideOffer) error {
		if !r.IsParticipant(raterID) {
			return forbidden("only ride participants can rate")
		}
		if r.Status != models.RideStatusCompleted {
			return conflict("only completed rides can be rated")
		}
		if in.RiderID == raterID || !r.IsParticipant(in.RiderID) {
			return validationError("riderId must be another participant of this ride")
		}
		for _, rt := range r.Ratings {
			if rt.RaterID == raterID && rt.RiderID == in.RiderID {
				return conflict("already rated this rider")
			}
		}
		r.Ratings = append(r.Ratings, models.Rating{
			RiderID:   in.RiderID,
			RaterID:   raterID,
			Score:     in.Score,
			Comment:   strings.TrimSpace(in.Comment),
			Category:  strings.TrimSpace(in.Category),
			CreatedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ride, OpUpdate, "rated", raterID)
	return ride, nil
}

func (s *RideService) GetRide(ctx context.Context, rideID uint) (*models.RideOffer, error) {
	return s.getRide(ctx, rideID)
}

// ListOwnRides returns rides userID owns, requested or is confirmed on.
func (s *RideService) ListOwnRides(ctx context.Context, userID uint) ([]models.RideOffer, error) {
	return s.rides.ListForUser(ctx, userID)
}

type SearchInput struct {
	DepartureTime time.Time
	StartLocation string
	EndLocation   string
}

// SearchRides lists pending rides leaving within the search window of the
// target time whose route fuzzy-matches.
func (s *RideService) SearchRides(ctx context.Context, in SearchInput) ([]models.RideOffer, error) {
	if in.DepartureTime.IsZero() {
		return nil, validationError("departureTime is required")
	}
	if strings.TrimSpace(in.StartLocation) == "" {
		return nil, validationError("startLocation is required")
	}

	candidates, err := s.rides.Search(ctx, repository.RideQuery{
		Status:        models.RideStatusPending,
		DepartureFrom: in.DepartureTime.Add(-s.searchWindow),
		DepartureTo:   in.DepartureTime.Add(s.searchWindow),
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.RideOffer, 0, len(candidates))
	for _, r := range candidates {
		if !fuzzyMatch(r.StartLocation, in.StartLocation) {
			continue
		}
		if strings.TrimSpace(in.EndLocation) != "" && !fuzzyMatch(r.EndLocation, in.EndLocation) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RideService) getRide(ctx context.Context, rideID uint) (*models.RideOffer, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("ride %d not found", rideID)
	}
	return ride, err
}

func (s *RideService) mutate(ctx context.Context, op string, rideID uint, fn func(*models.RideOffer) error) (*models.RideOffer, error) {
	ride, err := s.rides.Mutate(ctx, rideID, fn)
	if errors.Is(err, repository.ErrNotFound) {
		err = notFound("ride %d not found", rideID)
	}
	observeOperation(op, err)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			s.logger.Error("ride mutation failed", "operation", op, "ride_id", rideID, "error", err)
		}
		return nil, err
	}
	return ride, nil
}

// participantEvents addresses the owner and confirmed passengers except actor.
func (s *RideService) participantEvents(ride *models.RideOffer, actorID uint, typ models.NotificationType, title, message string, data map[string]interface{}) []NotificationEvent {
	events := make([]NotificationEvent, 0, len(ride.ConfirmedRiders)+1)
	for _, id := range ride.Participants() {
		if id == actorID {
			continue
		}
		events = append(events, NotificationEvent{
			RecipientID: id,
			SenderID:    actorID,
			Type:        typ,
			Title:       title,
			Message:     message,
			Data:        data,
		})
	}
	return events
}

func (s *RideService) notify(ctx context.Context, events []NotificationEvent) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	if _, err := s.notifier.Notify(ctx, events); err != nil {
		s.logger.Warn("notification delivery incomplete", "error", err)
	}
}

func (s *RideService) publish(ctx context.Context, ride *models.RideOffer, op, typ string, actorID uint) {
	ev := RideEvent{
		RideID:  ride.ID,
		Op:      op,
		Type:    typ,
		Status:  string(ride.Status),
		ActorID: actorID,
		At:      s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("ride event publish failed", "ride_id", ride.ID, "type", typ, "error", err)
	}
}

// fuzzyMatch reports case-insensitive containment in either direction.
func fuzzyMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
