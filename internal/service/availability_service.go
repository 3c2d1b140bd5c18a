package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trainhub/scheduling-api/internal/models"
	appErrors "github.com/trainhub/scheduling-api/pkg/errors"
)

// ConflictCandidateFinder finds accepted days touching a room or trainer on a
// date.
type ConflictCandidateFinder interface {
	FindConflictCandidates(ctx context.Context, date time.Time, roomID, trainerID, excludeScheduleID string) ([]models.AcceptedDay, error)
}

// ConfirmedQuantitySummer sums confirmed booking quantities for a resource day.
type ConfirmedQuantitySummer interface {
	ConfirmedQuantity(ctx context.Context, resourceID string, date time.Time) (int, error)
}

// CacheStore reads and writes advisory cache entries.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AvailabilityService answers advisory free/busy questions for rooms,
// trainers and resources. Answers here never gate a mutation; the
// authoritative checks run inside the repository transactions.
type AvailabilityService struct {
	schedules ConflictCandidateFinder
	bookings  ConfirmedQuantitySummer
	resources ResourceReader
	rooms     RoomReader
	cache     CacheStore
	cacheTTL  time.Duration
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewAvailabilityService constructs the service. Cache may be nil, which
// disables the advisory caching layer entirely.
func NewAvailabilityService(
	schedules ConflictCandidateFinder,
	bookings ConfirmedQuantitySummer,
	resources ResourceReader,
	rooms RoomReader,
	cache CacheStore,
	cacheTTL time.Duration,
	logger *zap.Logger,
	metrics *MetricsService,
) *AvailabilityService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &AvailabilityService{
		schedules: schedules,
		bookings:  bookings,
		resources: resources,
		rooms:     rooms,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		metrics:   metrics,
	}
}

// IsRoomFree reports whether no accepted schedule occupies the room during
// the given slot.
func (s *AvailabilityService) IsRoomFree(ctx context.Context, roomID, date, start, end string) (bool, error) {
	slot, err := models.NewSlot(date, start, end)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load room")
	}

	candidates, err := s.schedules.FindConflictCandidates(ctx, slot.Date, roomID, "", "")
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check room availability")
	}
	for _, candidate := range candidates {
		if candidate.RoomID == roomID && slot.Overlaps(candidate.Slot()) {
			return false, nil
		}
	}
	return true, nil
}

// IsTrainerFree reports whether no accepted schedule claims the trainer
// during the given slot.
func (s *AvailabilityService) IsTrainerFree(ctx context.Context, trainerID, date, start, end string) (bool, error) {
	slot, err := models.NewSlot(date, start, end)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	candidates, err := s.schedules.FindConflictCandidates(ctx, slot.Date, "", trainerID, "")
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check trainer availability")
	}
	for _, candidate := range candidates {
		if candidate.TrainerID != nil && *candidate.TrainerID == trainerID && slot.Overlaps(candidate.Slot()) {
			return false, nil
		}
	}
	return true, nil
}

// ResourceAvailability reports the remaining bookable quantity of a resource
// on a date. The value may be briefly stale when served from cache.
func (s *AvailabilityService) ResourceAvailability(ctx context.Context, resourceID, date string) (int, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid date %q", date))
	}

	cacheKey := fmt.Sprintf("availability:resource:%s:%s", resourceID, date)
	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("availability cache read failed", "key", cacheKey, "error", err)
		}
		s.metrics.RecordCacheLookup(false)
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load resource")
	}
	if !resource.Available {
		return 0, nil
	}

	reserved, err := s.bookings.ConfirmedQuantity(ctx, resourceID, day)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sum confirmed bookings")
	}
	remaining := resource.TotalQuantity - reserved
	if remaining < 0 {
		remaining = 0
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, remaining, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("availability cache write failed", "key", cacheKey, "error", err)
		}
	}
	return remaining, nil
}

// RoomFitsSeats reports whether the room's seat capacity covers the required
// head count. Advisory only; room capacity never blocks scheduling.
func (s *AvailabilityService) RoomFitsSeats(ctx context.Context, roomID string, requiredSeats int) (bool, error) {
	if requiredSeats < 0 {
		return false, appErrors.Clone(appErrors.ErrValidation, "required seats must not be negative")
	}
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load room")
	}
	return room.Capacity >= requiredSeats, nil
}
