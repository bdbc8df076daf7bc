package services

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/campusride/campusride-backend/internal/models"
	"github.com/campusride/campusride-backend/internal/repository"
)

// MatchRequest is the trip a rider wants.
type MatchRequest struct {
	StartLocation string
	EndLocation   string
	DepartureTime time.Time
}

// MatchCandidate is a pending ride annotated for ranking.
type MatchCandidate struct {
	models.RideOffer
	OwnerGender string `json:"ownerGender"`
	MatchScore  int    `json:"matchScore"`
}

// Matcher ranks pending offers against a desired trip.
type Matcher struct {
	rides  repository.RideStore
	users  repository.UserDirectory
	feed   ChangeFeed
	logger *slog.Logger
}

func NewMatcher(rides repository.RideStore, users repository.UserDirectory, feed ChangeFeed, logger *slog.Logger) *Matcher {
	return &Matcher{rides: rides, users: users, feed: feed, logger: logger}
}

// Score computes the 0-100 match score of ride for req.
//
//	time:   max(0, 100 - 2*|minutes apart|)
//	route:  +20 for a start match, +20 for an end match
//	rating: +10 * average score, when the ride has ratings
func Score(ride *models.RideOffer, req MatchRequest) int {
	minutes := math.Abs(ride.DepartureTime.Sub(req.DepartureTime).Minutes())
	score := math.Max(0, 100-2*minutes)
	if fuzzyMatch(ride.StartLocation, req.StartLocation) {
		score += 20
	}
	if fuzzyMatch(ride.EndLocation, req.EndLocation) {
		score += 20
	}
	if avg, ok := ride.AverageRating(); ok {
		score += 10 * avg
	}
	return int(math.Round(math.Min(100, score)))
}

// Match returns pending rides with a resolvable owner, best first. Ties keep
// the store's order.
func (m *Matcher) Match(ctx context.Context, req MatchRequest) ([]MatchCandidate, error) {
	if req.DepartureTime.IsZero() {
		return nil, validationError("departureTime is required")
	}
	if strings.TrimSpace(req.StartLocation) == "" && strings.TrimSpace(req.EndLocation) == "" {
		return nil, validationError("startLocation or endLocation is required")
	}

	start := time.Now()
	defer func() { MatchDuration.Observe(time.Since(start).Seconds()) }()

	pending, err := m.rides.Search(ctx, repository.RideQuery{Status: models.RideStatusPending})
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]uint, 0, len(pending))
	seen := make(map[uint]bool)
	for _, r := range pending {
		if !seen[r.OwnerID] {
			seen[r.OwnerID] = true
			ownerIDs = append(ownerIDs, r.OwnerID)
		}
	}
	owners, err := m.users.Users(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]MatchCandidate, 0, len(pending))
	for i := range pending {
		owner, ok := owners[pending[i].OwnerID]
		if !ok {
			continue
		}
		out = append(out, MatchCandidate{
			RideOffer:   pending[i],
			OwnerGender: owner.Gender,
			MatchScore:  Score(&pending[i], req),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out, nil
}

// Stream pushes a fresh ranking through emit once on start and again after
// every ride change. The feed subscription is released when it returns.
func (m *Matcher) Stream(ctx context.Context, req MatchRequest, emit func([]MatchCandidate) error) error {
	changes, cancel, err := m.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	initial, err := m.Match(ctx, req)
	if err != nil {
		return err
	}

	MatchStreamsActive.Inc()
	defer MatchStreamsActive.Dec()

	if err := emit(initial); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			list, err := m.Match(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				m.logger.Warn("match stream recompute failed", "error", err)
				continue
			}
			if err := emit(list); err != nil {
				return err
			}
		}
	}
}
